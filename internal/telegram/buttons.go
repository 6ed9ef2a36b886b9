package telegram

import (
	"encoding/base64"
	"errors"
)

// ButtonKind is the closed set of callback buttons the bot issues. The
// wire form is a 1-byte kind tag plus an optional payload, base64-encoded;
// dispatch is an exhaustive switch on the kind.
type ButtonKind byte

const (
	ButtonWithdraw ButtonKind = iota
)

var errUnknownButton = errors.New("unknown button")

// Button is a decoded callback payload.
type Button struct {
	Kind    ButtonKind
	Payload []byte
}

// EncodeButton builds callback data for a button kind.
func EncodeButton(kind ButtonKind, payload []byte) string {
	data := append([]byte{byte(kind)}, payload...)
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeButton parses callback data back into a Button.
func DecodeButton(data string) (Button, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) == 0 {
		return Button{}, errUnknownButton
	}

	kind := ButtonKind(raw[0])
	switch kind {
	case ButtonWithdraw:
		return Button{Kind: kind, Payload: raw[1:]}, nil
	default:
		return Button{}, errUnknownButton
	}
}
