package flv

import "fmt"

// H264SPSInfo holds the fields this package extracts from an SPS NALU: the
// profile/level triad the AVCDecoderConfigurationRecord header carries, plus
// the decoded picture dimensions (grounded on the teacher's
// readH264SpecificConfig, reimplemented over the pointer-receiver bitReader).
type H264SPSInfo struct {
	ProfileIDC  byte
	CompatFlags byte
	LevelIDC    byte
	Width       uint32
	Height      uint32
	RefFrames   uint32
}

// ParseH264SPS decodes width/height/profile from a raw (Annex-B-stripped,
// emulation-prevention-stripped) SPS NALU, including its 1-byte NALU header.
func ParseH264SPS(sps []byte) (H264SPSInfo, error) {
	var info H264SPSInfo
	br := newBitReader(sps)

	br.Read(8) // NALU header byte
	profileIDC := br.Read(8)
	info.ProfileIDC = byte(profileIDC)
	info.CompatFlags = byte(br.Read(8))
	info.LevelIDC = byte(br.Read(8))
	br.ReadGolomb() // seq_parameter_set_id

	if profileIDC == 100 || profileIDC == 110 || profileIDC == 122 || profileIDC == 244 ||
		profileIDC == 44 || profileIDC == 83 || profileIDC == 86 || profileIDC == 118 {
		chromaFormatIDC := br.ReadGolomb()
		if chromaFormatIDC == 3 {
			br.Read(1)
		}
		br.ReadGolomb() // bit_depth_luma_minus8
		br.ReadGolomb() // bit_depth_chroma_minus8
		br.Read(1)      // qpprime_y_zero_transform_bypass_flag
		if br.Read(1) != 0 {
			if chromaFormatIDC == 3 {
				br.Read(12)
			} else {
				br.Read(8)
			}
		}
	}

	br.ReadGolomb() // log2_max_frame_num_minus4
	picOrderCntType := br.ReadGolomb()
	switch picOrderCntType {
	case 0:
		br.ReadGolomb()
	case 1:
		br.Read(1)
		br.ReadGolomb()
		br.ReadGolomb()
		numRefFrames := br.ReadGolomb()
		for n := uint32(0); n < numRefFrames; n++ {
			br.ReadGolomb()
		}
	}

	info.RefFrames = br.ReadGolomb()
	br.Read(1) // gaps_in_frame_num_value_allowed_flag

	width := br.ReadGolomb()
	height := br.ReadGolomb()
	frameMbsOnly := br.Read(1)
	if frameMbsOnly == 0 {
		br.Read(1)
	}
	br.Read(1) // direct_8x8_inference_flag

	var cropLeft, cropRight, cropTop, cropBottom uint32
	if br.Read(1) != 0 {
		cropLeft = br.ReadGolomb()
		cropRight = br.ReadGolomb()
		cropTop = br.ReadGolomb()
		cropBottom = br.ReadGolomb()
	}

	if br.Err() {
		return info, fmt.Errorf("%w: truncated SPS", ErrInvalidFormat)
	}

	info.Width = (width+1)*16 - (cropLeft+cropRight)*2
	info.Height = (2-frameMbsOnly)*(height+1)*16 - (cropTop+cropBottom)*2
	return info, nil
}

// BuildAVCDecoderConfigurationRecord encodes an AVCDecoderConfigurationRecord
// (§3.4) from one or more SPS/PPS NALUs, Annex-B start codes and emulation
// prevention already stripped by the caller (see SplitAnnexB).
func BuildAVCDecoderConfigurationRecord(spsList, ppsList [][]byte) ([]byte, error) {
	if len(spsList) == 0 {
		return nil, fmt.Errorf("%w: no SPS NALU", ErrInvalidFormat)
	}
	info, err := ParseH264SPS(spsList[0])
	if err != nil {
		return nil, err
	}

	out := []byte{
		1, // version
		info.ProfileIDC,
		info.CompatFlags,
		info.LevelIDC,
		0xFC | 3, // reserved(6)=111111, lengthSizeMinusOne(2)=11 -> 4-byte lengths
	}
	out = append(out, 0xE0|byte(len(spsList)&0x1F))
	for _, sps := range spsList {
		l := []byte{byte(len(sps) >> 8), byte(len(sps))}
		out = append(out, l...)
		out = append(out, sps...)
	}
	out = append(out, byte(len(ppsList)))
	for _, pps := range ppsList {
		l := []byte{byte(len(pps) >> 8), byte(len(pps))}
		out = append(out, l...)
		out = append(out, pps...)
	}
	return out, nil
}

// SplitAnnexB exposes the Annex-B NALU splitter (start-code delimited,
// emulation prevention stripped) for callers assembling decoder
// configuration records from a raw encoder bitstream.
func SplitAnnexB(buf []byte) [][]byte { return splitAnnexB(buf) }

// EncodeAVCCNALUs joins NALUs (without start codes) into AVCC
// length-prefixed form: a 4-byte big-endian length then the NALU, repeated.
func EncodeAVCCNALUs(nalus [][]byte) []byte {
	var out []byte
	for _, n := range nalus {
		l := []byte{byte(len(n) >> 24), byte(len(n) >> 16), byte(len(n) >> 8), byte(len(n))}
		out = append(out, l...)
		out = append(out, n...)
	}
	return out
}

// DecodeAVCCNALUs splits AVCC length-prefixed NALUs back into a slice.
func DecodeAVCCNALUs(buf []byte) ([][]byte, error) {
	var out [][]byte
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, fmt.Errorf("%w: truncated AVCC length", ErrInvalidFormat)
		}
		n := int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
		buf = buf[4:]
		if n < 0 || n > len(buf) {
			return nil, fmt.Errorf("%w: truncated AVCC NALU", ErrInvalidFormat)
		}
		out = append(out, buf[:n])
		buf = buf[n:]
	}
	return out, nil
}
