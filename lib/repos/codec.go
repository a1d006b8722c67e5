package repos

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

var (
	propsEncoding cbor.EncMode
	propsDecoding cbor.DecMode

	blobEncoder *zstd.Encoder
	blobDecoder *zstd.Decoder
)

func init() {
	var err error
	if propsEncoding, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("repos: cbor encoder: " + err.Error())
	}
	if propsDecoding, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("repos: cbor decoder: " + err.Error())
	}
	if blobEncoder, err = zstd.NewWriter(nil); err != nil {
		panic("repos: zstd encoder: " + err.Error())
	}
	if blobDecoder, err = zstd.NewReader(nil); err != nil {
		panic("repos: zstd decoder: " + err.Error())
	}
}

func encodeProps(props map[string][]byte) ([]byte, error) {
	if props == nil {
		props = map[string][]byte{}
	}
	return propsEncoding.Marshal(props)
}

func decodeProps(data []byte) (map[string][]byte, error) {
	props := map[string][]byte{}
	if len(data) == 0 {
		return props, nil
	}
	if err := propsDecoding.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return props, nil
}

func compressBlob(data []byte) []byte {
	return blobEncoder.EncodeAll(data, nil)
}

func decompressBlob(data []byte) ([]byte, error) {
	return blobDecoder.DecodeAll(data, nil)
}
