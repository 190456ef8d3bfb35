package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Version
		wantErr bool
	}{
		{
			name: "kubernetes minor version",
			in:   "1.32",
			want: Version{Major: 1, Minor: 32, Precision: 2},
		},
		{
			name: "driver version",
			in:   "570.148.8",
			want: Version{Major: 570, Minor: 148, Patch: 8, Precision: 3},
		},
		{
			name: "driver version with packaging suffix",
			in:   "570.148.08-1.amzn2023",
			want: Version{Major: 570, Minor: 148, Patch: 8, Precision: 3, Extras: "-1.amzn2023"},
		},
		{
			name: "release tag with v prefix",
			in:   "v20250403",
			want: Version{Major: 20250403, Precision: 1},
		},
		{name: "empty", in: "", wantErr: true},
		{name: "non numeric", in: "abc", wantErr: true},
		{name: "too many components", in: "1.2.3.4", wantErr: true},
		{name: "trailing dot", in: "1.2.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareNumericNotLexical(t *testing.T) {
	v9 := MustParse("1.9")
	v10 := MustParse("1.10")

	assert.Equal(t, -1, v9.Compare(v10))
	assert.Equal(t, 1, v10.Compare(v9))
}

func TestComparePrecision(t *testing.T) {
	// "1.32" matches any 1.32.x
	assert.Equal(t, 0, MustParse("1.32").Compare(MustParse("1.32.4")))
	assert.True(t, MustParse("1.32").EqualsOrNewer(MustParse("1.31")))
	assert.False(t, MustParse("1.31").EqualsOrNewer(MustParse("1.32")))
}

func TestExtractDriverBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"570.148.08-1.amzn2023", "570.148.08"},
		{"550.127.08-1.el7", "550.127.08"},
		{"570.124", "570.124"},
		{"570", "570"},
		{"n/a", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDriverBase(tt.in), tt.in)
	}
}

func TestIsExactDriverVersion(t *testing.T) {
	assert.True(t, IsExactDriverVersion("570.148.08"))
	assert.True(t, IsExactDriverVersion("570.148.08-1.amzn2023"))
	assert.False(t, IsExactDriverVersion("570"))
	assert.False(t, IsExactDriverVersion("570.148"))
}

func TestSortNumeric(t *testing.T) {
	versions := []string{"1.10", "1.2", "1.9"}
	SortNumeric(versions)
	assert.Equal(t, []string{"1.2", "1.9", "1.10"}, versions)
}
