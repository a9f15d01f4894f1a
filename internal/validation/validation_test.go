package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "user@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "user+tag@example.com",
			wantErr: false,
		},
		{
			name:    "missing @",
			email:   "testexample.com",
			wantErr: true,
		},
		{
			name:    "missing domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "missing local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "empty string",
			email:   "",
			wantErr: true,
		},
		{
			name:    "spaces in email",
			email:   "test @example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid name",
			input:   "John Doe",
			wantErr: false,
		},
		{
			name:    "single name",
			input:   "John",
			wantErr: false,
		},
		{
			name:    "empty name",
			input:   "",
			wantErr: true,
		},
		{
			name:    "name too short",
			input:   "J",
			wantErr: true,
		},
		{
			name:    "name with hyphen",
			input:   "Mary-Jane",
			wantErr: false,
		},
		{
			name:    "name with apostrophe",
			input:   "O'Brien",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "valid password",
			password: "password123",
			wantErr:  false,
		},
		{
			name:     "password exactly 8 characters",
			password: "pass1234",
			wantErr:  false,
		},
		{
			name:     "password too short",
			password: "pass123",
			wantErr:  true,
		},
		{
			name:     "empty password",
			password: "",
			wantErr:  true,
		},
		{
			name:     "long password",
			password: "thisIsAVeryLongPasswordThatShouldBeValid123",
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDifficulty(t *testing.T) {
	for _, d := range []string{"easy", "medium", "hard", "normal"} {
		if err := ValidateDifficulty(d); err != nil {
			t.Errorf("ValidateDifficulty(%q) unexpected error %v", d, err)
		}
	}

	for _, d := range []string{"", "extreme", "Easy"} {
		err := ValidateDifficulty(d)
		if !IsFieldError(err) {
			t.Errorf("ValidateDifficulty(%q) = %v, want FieldError", d, err)
		}
	}
}

func TestValidateRecall(t *testing.T) {
	tests := []struct {
		name    string
		words   []string
		wantErr bool
	}{
		{name: "distinct", words: []string{"apple", "banana"}, wantErr: false},
		{name: "empty list", words: nil, wantErr: false},
		{name: "case-insensitive duplicate", words: []string{"Apple", "apple "}, wantErr: true},
		{name: "blank entry", words: []string{"apple", "  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecall(tt.words)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecall(%v) error = %v, wantErr %v", tt.words, err, tt.wantErr)
			}
		})
	}
}

type wordsRequest struct {
	Count      int    `json:"count" validate:"required,min=1,max=50"`
	Difficulty string `json:"difficulty" validate:"required,difficulty"`
	MinLength  *int   `json:"minLength" validate:"omitempty,min=1,max=20"`
}

func TestStruct(t *testing.T) {
	seven := 7
	zero := 0

	tests := []struct {
		name      string
		req       wordsRequest
		wantField string
	}{
		{name: "valid", req: wordsRequest{Count: 10, Difficulty: "easy", MinLength: &seven}},
		{name: "count too large", req: wordsRequest{Count: 51, Difficulty: "easy"}, wantField: "count"},
		{name: "missing count", req: wordsRequest{Difficulty: "easy"}, wantField: "count"},
		{name: "bad difficulty", req: wordsRequest{Count: 5, Difficulty: "extreme"}, wantField: "difficulty"},
		{name: "min length zero", req: wordsRequest{Count: 5, Difficulty: "hard", MinLength: &zero}, wantField: "minLength"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantField, fe.Field)
			assert.NotEmpty(t, fe.Message)
		})
	}
}
