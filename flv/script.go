package flv

import "github.com/strmio/rtmp/amf0"

// ScriptTag is the parsed form of an FLV script (onMetaData and similar)
// tag body: a sequence of AMF0 values, typically a command-name String
// followed by one Object/EcmaArray of parameters.
type ScriptTag struct {
	Values []*amf0.Value
}

func decodeScriptTag(body []byte) (*ScriptTag, error) {
	r := amf0.NewReader(body)
	st := &ScriptTag{}
	for r.Len() > 0 {
		v, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		st.Values = append(st.Values, v)
	}
	return st, nil
}

func encodeScriptTag(st *ScriptTag) []byte {
	var out []byte
	for _, v := range st.Values {
		out = append(out, amf0.Encode(v)...)
	}
	return out
}

// OnMetaData builds the conventional script tag body for onMetaData:
// String("onMetaData") followed by an EcmaArray of properties.
func OnMetaData(props *amf0.Value) []byte {
	return encodeScriptTag(&ScriptTag{Values: []*amf0.Value{amf0.String("onMetaData"), props}})
}
