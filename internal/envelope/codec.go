package envelope

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. The same envelope always produces identical bytes, which keeps
// size checks and payload accounting stable.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown fields from newer peers are
// ignored at the codec layer; envelope-level validation still rejects
// schema-version mismatches outright.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("envelope: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("envelope: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes an envelope to deterministic CBOR.
func Marshal(e *Envelope) ([]byte, error) {
	return encMode.Marshal(e)
}

// Unmarshal decodes CBOR data into an envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := decMode.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// EncodedLen returns the wire size of the envelope, or 0 when it cannot
// be encoded.
func EncodedLen(e *Envelope) int {
	data, err := encMode.Marshal(e)
	if err != nil {
		return 0
	}
	return len(data)
}
