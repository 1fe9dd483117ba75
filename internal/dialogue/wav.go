package dialogue

import (
	"bytes"
	"encoding/binary"
)

// wavDuration reads the playback length from a RIFF/WAVE header. It returns
// zero when the data is not a PCM WAV it understands.
func wavDuration(data []byte) float64 {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0
	}

	var byteRate, dataSize uint32

	for offset := 12; offset+8 <= len(data); {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch id {
		case "fmt ":
			if body+12 <= len(data) {
				byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			}
		case "data":
			dataSize = size
		}

		next := body + int(size) + int(size%2)
		if next <= offset {
			break
		}

		offset = next
	}

	if byteRate == 0 {
		return 0
	}

	return float64(dataSize) / float64(byteRate)
}
