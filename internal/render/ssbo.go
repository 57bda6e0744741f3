package render

import (
	"bytes"
	"encoding/binary"

	"github.com/rpa-review/sessioncore/internal/colorcorrection"
)

// PackCCs lays the unmuted corrections out for the shader storage buffer:
// an int32 count followed by each correction's float32 fields.
func PackCCs(ccs []*colorcorrection.ColorCorrection) []byte {
	var fields []float32
	count := int32(0)
	for _, cc := range ccs {
		if cc.Mute {
			continue
		}
		count++
		fields = append(fields, cc.Pack()...)
	}
	buf := bytes.NewBuffer(make([]byte, 0, 4+4*len(fields)))
	_ = binary.Write(buf, binary.LittleEndian, count)
	_ = binary.Write(buf, binary.LittleEndian, fields)
	return buf.Bytes()
}

// UnpackCCs reads a buffer written by PackCCs back into its count and fields.
func UnpackCCs(data []byte) (int32, []float32, error) {
	r := bytes.NewReader(data)
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return 0, nil, err
	}
	fields := make([]float32, r.Len()/4)
	if err := binary.Read(r, binary.LittleEndian, fields); err != nil {
		return 0, nil, err
	}
	return count, fields, nil
}
