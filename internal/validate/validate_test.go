package validate

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "100", want: "100"},
		{input: "$1,250.50", want: "1250.5"},
		{input: " 0.01 ", want: "0.01"},
		{input: "1000000000", want: "1000000000"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "-5", wantErr: true},
		{input: "0", wantErr: true},
		{input: "0.00", wantErr: true},
		{input: "1000000000.01", wantErr: true},
		{input: "10.005", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Amount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), got.String())
		})
	}
}

func TestUsername(t *testing.T) {
	valid := []string{"alice", "bob_99", "a-b", strings.Repeat("x", 50)}
	invalid := []string{"", "ab", "9lives", "_alice", "al ice", "al!ce", strings.Repeat("x", 51)}

	for _, u := range valid {
		assert.NoError(t, Username(u), u)
	}
	for _, u := range invalid {
		assert.ErrorIs(t, Username(u), ErrInvalid, u)
	}
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "strong", password: "Tr0ub4dor&X"},
		{name: "empty", password: "", wantErr: true},
		{name: "short", password: "Aa1!", wantErr: true},
		{name: "no upper", password: "tr0ub4dor&x", wantErr: true},
		{name: "no lower", password: "TR0UB4DOR&X", wantErr: true},
		{name: "no digit", password: "Troubador&X", wantErr: true},
		{name: "no special", password: "Tr0ub4dorXX", wantErr: true},
		{name: "repeated", password: "Tr0uuuub4&X", wantErr: true},
		{name: "digit run", password: "Tr0ub123&X", wantErr: true},
		{name: "letter run", password: "Tr0ubABC&4", wantErr: true},
		{name: "too long", password: "Tr0ub4dor&X" + strings.Repeat("q", 120), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Password(tt.password, 8)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	assert.NoError(t, Email(""))
	assert.NoError(t, Email("alice.a+bank@example.co"))
	assert.Error(t, Email("alice"))
	assert.Error(t, Email("alice@bank"))
	assert.Error(t, Email("alice..a@bank.test"))
	assert.Error(t, Email(strings.Repeat("a", 250)+"@b.co"))
}

func TestFullName(t *testing.T) {
	assert.NoError(t, FullName(""))
	assert.NoError(t, FullName("Mary-Jane O'Neil"))
	assert.Error(t, FullName("M"))
	assert.Error(t, FullName("R2D2"))
}

func TestAccountNumber(t *testing.T) {
	assert.NoError(t, AccountNumber("A1B2C3D4"))
	assert.Error(t, AccountNumber(""))
	assert.Error(t, AccountNumber("A1B2C3D"))
	assert.Error(t, AccountNumber("a1b2c3d4"))
}

func TestEmployeeID(t *testing.T) {
	assert.NoError(t, EmployeeID("EMP-001"))
	assert.Error(t, EmployeeID("E1"))
	assert.Error(t, EmployeeID("EMP 001"))
}

func TestDescription(t *testing.T) {
	assert.NoError(t, Description(""))
	assert.NoError(t, Description("Rent for May"))
	assert.Error(t, Description(" a "))
	assert.Error(t, Description("bad\x00desc"))
	assert.Error(t, Description(strings.Repeat("x", 501)))
}
