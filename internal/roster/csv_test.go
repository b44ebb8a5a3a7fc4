package roster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmails(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "header with email column",
			in:   "Name,Email,Company\nAnna,Anna@Example.com,ACME\nBob,bob@example.com,\n",
			want: []string{"anna@example.com", "bob@example.com"},
		},
		{
			name: "bom crlf and semicolons",
			in:   "\ufeffimię;E-mail\r\nAnna;anna@example.com\r\n\r\nOla;ola@example.org\r\n",
			want: []string{"anna@example.com", "ola@example.org"},
		},
		{
			name: "tab separated email address header",
			in:   "Email Address\tName\nx@example.com\tX\n",
			want: []string{"x@example.com"},
		},
		{
			name: "unknown header, column found from first data row",
			in:   "col1,col2\nfoo,foo@example.com\nbar,bar@example.com\n",
			want: []string{"foo@example.com", "bar@example.com"},
		},
		{
			name: "headerless single column",
			in:   "a@example.com\nb@example.com\na@example.com\n",
			want: []string{"a@example.com", "b@example.com"},
		},
		{
			name: "quoted cells",
			in:   "\"Name, Full\",email\n\"Doe, Jane\",\"jane@example.com\"\n",
			want: []string{"jane@example.com"},
		},
		{
			name: "invalid rows skipped",
			in:   "email\nnot-an-email\nok@example.com\n\n",
			want: []string{"ok@example.com"},
		},
		{
			name: "regex fallback",
			in:   "Attendees: Jan <jan@example.com> and\nmaria@example.net joined",
			want: []string{"jan@example.com", "maria@example.net"},
		},
		{
			name: "empty",
			in:   "\n  \n",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEmails(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("a.b+c@example.co.uk"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("a@"))
	assert.False(t, ValidEmail("plainaddress"))
}
