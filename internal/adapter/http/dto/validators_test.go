package dto

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

var (
	validOwner     = "xion1" + strings.Repeat("q", 38)
	validRecipient = "xion1" + strings.Repeat("p", 38)
)

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := TransferRequest{
		Recipient: "  " + validRecipient + "  ",
		Amount:    " 1.5 ",
		Currency:  " XION ",
		Note:      "  rent <b>march</b>  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, validRecipient, req.Recipient)
	assert.Equal(t, "1.5", req.Amount)
	assert.Equal(t, "XION", req.Currency)
	assert.Equal(t, "rent &lt;b&gt;march&lt;/b&gt;", req.Note)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	type withPtr struct {
		Memo *string
		Nil  *string
	}
	memo := "  hi  "
	v := withPtr{Memo: &memo}
	SanitizeStruct(&v)

	assert.Equal(t, "hi", *v.Memo)
	assert.Nil(t, v.Nil)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	SanitizeStruct("hello") // should not panic
}

func TestIsAddress(t *testing.T) {
	valid := []string{
		validOwner,
		validRecipient,
		"cosmos1" + strings.Repeat("z", 38),
		"xion1" + strings.Repeat("q", 58), // contract address
	}
	for _, tc := range valid {
		assert.True(t, IsAddress(tc), "expected valid: %s", tc)
	}

	invalid := []string{
		"",
		"xion1short",
		"XION1" + strings.Repeat("q", 38),  // upper case
		"xion1" + strings.Repeat("b", 38),  // 'b' is outside the charset
		"xion" + strings.Repeat("q", 39),   // no separator
		"xion1 " + strings.Repeat("q", 37), // space
		"0x" + strings.Repeat("a", 40),     // evm address
	}
	for _, tc := range invalid {
		assert.False(t, IsAddress(tc), "expected invalid: %q", tc)
	}
}

func TestTransferRequest_Binding(t *testing.T) {
	tests := []struct {
		name  string
		req   TransferRequest
		valid bool
	}{
		{"valid", TransferRequest{Recipient: validRecipient, Amount: "1.5", Currency: "XION"}, true},
		{"lower case currency", TransferRequest{Recipient: validRecipient, Amount: "2", Currency: "usdc"}, true},
		{"bad address", TransferRequest{Recipient: "nope", Amount: "1", Currency: "XION"}, false},
		{"zero amount", TransferRequest{Recipient: validRecipient, Amount: "0", Currency: "XION"}, false},
		{"negative amount", TransferRequest{Recipient: validRecipient, Amount: "-3", Currency: "XION"}, false},
		{"not a number", TransferRequest{Recipient: validRecipient, Amount: "abc", Currency: "XION"}, false},
		{"unknown currency", TransferRequest{Recipient: validRecipient, Amount: "1", Currency: "ETH"}, false},
		{"note too long", TransferRequest{Recipient: validRecipient, Amount: "1", Currency: "XION", Note: strings.Repeat("n", 257)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
