package flv

// splitAnnexB splits an Annex-B bitstream (NALUs delimited by 0x000001 or
// 0x00000001 start codes) into individual NALUs with start codes removed.
func splitAnnexB(buf []byte) [][]byte {
	var nalus [][]byte
	starts := findStartCodes(buf)
	for i, s := range starts {
		end := len(buf)
		if i+1 < len(starts) {
			end = starts[i+1].pos
		}
		nalu := buf[s.pos+s.len : end]
		if len(nalu) > 0 {
			nalus = append(nalus, stripEmulationPrevention(nalu))
		}
	}
	return nalus
}

type startCode struct {
	pos int
	len int
}

func findStartCodes(buf []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			if i > 0 && buf[i-1] == 0 {
				out = append(out, startCode{pos: i - 1, len: 4})
			} else {
				out = append(out, startCode{pos: i, len: 3})
			}
		}
	}
	return out
}

// stripEmulationPrevention removes the 0x03 emulation-prevention byte that
// follows any 0x0000 sequence inside a NALU's RBSP payload.
func stripEmulationPrevention(nalu []byte) []byte {
	out := make([]byte, 0, len(nalu))
	zeros := 0
	for _, b := range nalu {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}
