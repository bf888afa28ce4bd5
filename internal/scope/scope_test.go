package scope

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		spec string
		want []string
	}{
		{"", []string{}},
		{"read", []string{"read"}},
		{"read write", []string{"read", "write"}},
		{"write read", []string{"read", "write"}},
		{"read,write", []string{"read", "write"}},
		{"read, write", []string{"read", "write"}},
		{"read read write", []string{"read", "write"}},
		{"  read\twrite\n", []string{"read", "write"}},
	}
	for _, tt := range tests {
		if got := Normalize(tt.spec); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Normalize(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{" write ", "read", "write", ""})
	want := []string{"read", "write"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeList = %v, want %v", got, want)
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		requested, permitted, want []string
	}{
		{[]string{"read", "write", "admin"}, []string{"read", "write"}, []string{"read", "write"}},
		{[]string{"admin"}, []string{"read", "write"}, []string{}},
		{[]string{}, []string{"read"}, []string{}},
		{[]string{"read"}, []string{}, []string{}},
		{[]string{"write", "read"}, []string{"write", "read"}, []string{"read", "write"}},
	}
	for _, tt := range tests {
		if got := Intersect(tt.requested, tt.permitted); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Intersect(%v, %v) = %v, want %v", tt.requested, tt.permitted, got, tt.want)
		}
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	set := Normalize("write read admin")
	stored := Join(set)
	if stored != "admin,read,write" {
		t.Errorf("Join = %q, want %q", stored, "admin,read,write")
	}
	if got := Split(stored); !reflect.DeepEqual(got, set) {
		t.Errorf("Split(%q) = %v, want %v", stored, got, set)
	}
	if got := Split(""); !reflect.DeepEqual(got, []string{}) {
		t.Errorf("Split(\"\") = %v, want empty set", got)
	}
}
