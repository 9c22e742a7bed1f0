package emulator

import (
	"encoding/binary"

	"github.com/OKaluzny/devicewallet/internal/address"
	"github.com/OKaluzny/devicewallet/internal/device"
)

const (
	nemTransferType    uint32 = 0x0101
	nemTransferVersion uint32 = 1
	nemMessagePlain    uint32 = 1
)

// serializeNEMTransfer lays out a version 1 NIS transfer transaction,
// little-endian, the way the device hashes and signs it.
func serializeNEMTransfer(signer []byte, common device.NEMTransactionCommon, t *device.NEMTransfer) []byte {
	recipient := []byte(address.NormalizeNEM(t.Recipient))

	var b []byte
	b = binary.LittleEndian.AppendUint32(b, nemTransferType)
	b = binary.LittleEndian.AppendUint32(b, common.Network<<24|nemTransferVersion)
	b = binary.LittleEndian.AppendUint32(b, common.Timestamp)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(signer)))
	b = append(b, signer...)
	b = binary.LittleEndian.AppendUint64(b, common.Fee)
	b = binary.LittleEndian.AppendUint32(b, common.Deadline)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(recipient)))
	b = append(b, recipient...)
	b = binary.LittleEndian.AppendUint64(b, t.Amount)

	if len(t.Payload) == 0 {
		return binary.LittleEndian.AppendUint32(b, 0)
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(8+len(t.Payload)))
	b = binary.LittleEndian.AppendUint32(b, nemMessagePlain)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Payload)))
	return append(b, t.Payload...)
}
