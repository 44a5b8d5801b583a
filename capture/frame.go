package capture

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"net"

	"github.com/google/gopacket/layers"
	"github.com/sarchlab/hiddenstations/mac"
)

const (
	fcsLen        = 4
	dataHeaderLen = 24
)

// Address returns the MAC address of a station. Station i gets
// 00:00:00:00:00:(i+1).
func Address(station int) net.HardwareAddr {
	a := make(net.HardwareAddr, 6)
	binary.BigEndian.PutUint32(a[2:], uint32(station+1))

	return a
}

func durationField(f *mac.Frame) uint16 {
	us := math.Ceil(float64(f.Duration) * 1e6)
	if us > 32767 {
		return 32767
	}

	return uint16(us)
}

func frameControl(b []byte, t layers.Dot11Type, flags layers.Dot11Flags) {
	b[0] = uint8(t) << 2
	b[1] = uint8(flags)
}

// dataAddresses follows the address layout of the distribution bits.
func dataAddresses(m *mac.Frame, ap int) (layers.Dot11Flags, [3]int) {
	switch {
	case m.ToDS:
		return layers.Dot11FlagsToDS, [3]int{ap, m.Src, m.FinalDst}
	case m.FromDS:
		return layers.Dot11FlagsFromDS, [3]int{m.Dst, ap, m.OrigSrc}
	default:
		return 0, [3]int{m.Dst, m.Src, ap}
	}
}

// Encode turns an on-air frame into 802.11 frames with FCS, one per MPDU for
// data. The AP's address is used as the BSSID.
func Encode(f *mac.Frame, ap int) [][]byte {
	switch f.Kind {
	case mac.FrameRTS:
		b := make([]byte, 16+fcsLen)
		frameControl(b, layers.Dot11TypeCtrlRTS, 0)
		binary.LittleEndian.PutUint16(b[2:], durationField(f))
		copy(b[4:], Address(f.Dst))
		copy(b[10:], Address(f.Src))

		return [][]byte{withFCS(b)}
	case mac.FrameCTS, mac.FrameAck:
		t := layers.Dot11TypeCtrlCTS
		if f.Kind == mac.FrameAck {
			t = layers.Dot11TypeCtrlAck
		}

		b := make([]byte, 10+fcsLen)
		frameControl(b, t, 0)
		binary.LittleEndian.PutUint16(b[2:], durationField(f))
		copy(b[4:], Address(f.Dst))

		return [][]byte{withFCS(b)}
	}

	mpdus := f.MPDUs
	if len(mpdus) == 0 {
		mpdus = []*mac.Frame{f}
	}

	out := make([][]byte, 0, len(mpdus))
	for _, m := range mpdus {
		b := make([]byte, dataHeaderLen+m.PayloadSize+fcsLen)
		flags, addr := dataAddresses(m, ap)
		frameControl(b, layers.Dot11TypeData, flags)
		binary.LittleEndian.PutUint16(b[2:], durationField(f))
		copy(b[4:], Address(addr[0]))
		copy(b[10:], Address(addr[1]))
		copy(b[16:], Address(addr[2]))
		binary.LittleEndian.PutUint16(b[22:], (m.Seq&0x0fff)<<4)

		out = append(out, withFCS(b))
	}

	return out
}

func withFCS(b []byte) []byte {
	n := len(b) - fcsLen
	binary.LittleEndian.PutUint32(b[n:], crc32.ChecksumIEEE(b[:n]))

	return b
}
