package flv

import "fmt"

// HEVCSPSInfo holds the profile-tier-level and picture-size fields this
// package extracts from an HEVC SPS NALU (grounded on the teacher's
// HEVCParseSPS/HEVCParsePtl, reimplemented over the pointer-receiver
// bitReader with the RBSP emulation-prevention pass done up front by the
// caller via SplitAnnexB).
type HEVCSPSInfo struct {
	GeneralProfileSpace uint32
	GeneralTierFlag     uint32
	GeneralProfileIDC   uint32
	CompatibilityFlags  uint32
	ConstraintFlags     uint64 // 48 bits of constraint/reserved indicator flags
	GeneralLevelIDC     uint32

	ChromaFormatIDC uint32
	Width           uint32
	Height          uint32
}

// ParseHEVCSPS decodes an HEVC SPS NALU (Annex-B start code and emulation
// prevention already stripped, 2-byte NAL unit header included).
func ParseHEVCSPS(sps []byte) (HEVCSPSInfo, error) {
	var info HEVCSPSInfo
	br := newBitReader(sps)

	br.Read(1) // forbidden_zero_bit
	br.Read(6) // nal_unit_type
	br.Read(6) // nuh_layer_id
	br.Read(3) // nuh_temporal_id_plus1

	br.Read(4) // sps_video_parameter_set_id
	maxSubLayersMinus1 := br.Read(3)
	br.Read(1) // sps_temporal_id_nesting_flag

	info.GeneralProfileSpace = br.Read(2)
	info.GeneralTierFlag = br.Read(1)
	info.GeneralProfileIDC = br.Read(5)
	info.CompatibilityFlags = br.Read(32)
	progressive := br.Read(1)
	interlaced := br.Read(1)
	nonPacked := br.Read(1)
	frameOnly := br.Read(1)
	_ = progressive
	_ = interlaced
	_ = nonPacked
	_ = frameOnly
	hi := uint64(br.Read(32))
	lo := uint64(br.Read(12))
	info.ConstraintFlags = hi<<12 | lo
	info.GeneralLevelIDC = br.Read(8)

	subProfilePresent := make([]uint32, maxSubLayersMinus1)
	subLevelPresent := make([]uint32, maxSubLayersMinus1)
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		subProfilePresent[i] = br.Read(1)
		subLevelPresent[i] = br.Read(1)
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			br.Read(2)
		}
	}
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		if subProfilePresent[i] != 0 {
			br.Read(2)
			br.Read(1)
			br.Read(5)
			br.Read(32)
			br.Read(1)
			br.Read(1)
			br.Read(1)
			br.Read(1)
			br.Read(32)
			br.Read(12)
		}
		if subLevelPresent[i] != 0 {
			br.Read(8)
		}
	}

	br.ReadGolomb() // sps_seq_parameter_set_id
	info.ChromaFormatIDC = br.ReadGolomb()
	if info.ChromaFormatIDC == 3 {
		br.Read(1) // separate_colour_plane_flag
	}
	info.Width = br.ReadGolomb()
	info.Height = br.ReadGolomb()

	if br.Read(1) != 0 { // conformance_window_flag
		vertMult, horizMult := uint32(2), uint32(2)
		if info.ChromaFormatIDC >= 2 {
			vertMult = 1
		}
		if info.ChromaFormatIDC >= 3 {
			horizMult = 1
		}
		left := br.ReadGolomb() * horizMult
		right := br.ReadGolomb() * horizMult
		top := br.ReadGolomb() * vertMult
		bottom := br.ReadGolomb() * vertMult
		info.Width -= left + right
		info.Height -= top + bottom
	}

	if br.Err() {
		return info, fmt.Errorf("%w: truncated HEVC SPS", ErrInvalidFormat)
	}
	return info, nil
}

// BuildHEVCDecoderConfigurationRecord encodes an
// HEVCDecoderConfigurationRecord (§3.4) from VPS/SPS/PPS NALU sets plus
// optional prefix/suffix SEI, Annex-B framing already stripped by the
// caller. Profile-tier-level and chroma format are derived from the first
// SPS. Bit depths are always written as 8-bit (bit_depth_*_minus8 = 0), and
// avgFrameRate, constantFrameRate, numTemporalLayers and temporalIdNested
// are always written as 0; none of them is read from the SPS.
func BuildHEVCDecoderConfigurationRecord(vpsList, spsList, ppsList, prefixSEI, suffixSEI [][]byte) ([]byte, error) {
	if len(spsList) == 0 {
		return nil, fmt.Errorf("%w: no SPS NALU", ErrInvalidFormat)
	}
	info, err := ParseHEVCSPS(spsList[0])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 23)
	out[0] = 1 // configurationVersion

	generalProfileTierByte := byte(info.GeneralProfileSpace)<<6 | byte(info.GeneralTierFlag)<<5 | byte(info.GeneralProfileIDC)
	out[1] = generalProfileTierByte
	out[2] = byte(info.CompatibilityFlags >> 24)
	out[3] = byte(info.CompatibilityFlags >> 16)
	out[4] = byte(info.CompatibilityFlags >> 8)
	out[5] = byte(info.CompatibilityFlags)
	for i := 0; i < 6; i++ {
		out[6+i] = byte(info.ConstraintFlags >> uint(8*(5-i)))
	}
	out[12] = byte(info.GeneralLevelIDC)

	// min_spatial_segmentation_idc(12b reserved=1111) = 0
	out[13] = 0xF0
	out[14] = 0x00
	// parallelismType(2b reserved=111111)
	out[15] = 0xFC
	// chroma_format_idc(2b reserved=111111)
	out[16] = 0xFC | byte(info.ChromaFormatIDC&0x03)
	// bit_depth_luma_minus8(3b reserved=11111) = 0
	out[17] = 0xF8
	// bit_depth_chroma_minus8(3b reserved=11111) = 0
	out[18] = 0xF8
	// avgFrameRate
	out[19], out[20] = 0, 0
	// constantFrameRate(2b) numTemporalLayers(3b) temporalIdNested(1b) lengthSizeMinusOne(2b)
	out[21] = 0x03 // lengthSizeMinusOne = 3 -> 4-byte lengths, rest 0
	out[22] = 0    // numArrays

	type arrayEntry struct {
		nalType byte
		nalus   [][]byte
	}
	arrays := []arrayEntry{}
	if len(vpsList) > 0 {
		arrays = append(arrays, arrayEntry{32, vpsList})
	}
	arrays = append(arrays, arrayEntry{33, spsList})
	arrays = append(arrays, arrayEntry{34, ppsList})
	if len(prefixSEI) > 0 {
		arrays = append(arrays, arrayEntry{39, prefixSEI})
	}
	if len(suffixSEI) > 0 {
		arrays = append(arrays, arrayEntry{40, suffixSEI})
	}
	out[22] = byte(len(arrays))

	for _, a := range arrays {
		out = append(out, 0x80|a.nalType) // array_completeness=1, reserved=0, NAL_unit_type
		countBytes := []byte{byte(len(a.nalus) >> 8), byte(len(a.nalus))}
		out = append(out, countBytes...)
		for _, n := range a.nalus {
			l := []byte{byte(len(n) >> 8), byte(len(n))}
			out = append(out, l...)
			out = append(out, n...)
		}
	}
	return out, nil
}
