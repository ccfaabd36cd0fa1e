package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKeyDocumentID(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{
			name: "standard key",
			key:  "user-1/course-1/7b8a4c1e-0d2f-4f6a-9b3c-5e7d8f9a0b1c.pdf",
			want: "7b8a4c1e-0d2f-4f6a-9b3c-5e7d8f9a0b1c",
		},
		{
			name: "leading slash",
			key:  "/user-1/course-1/doc-1.pptx",
			want: "doc-1",
		},
		{
			name: "no extension",
			key:  "user-1/notes/doc-1",
			want: "doc-1",
		},
		{
			name: "multiple dots strip from first",
			key:  "user-1/course-1/doc-1.tar.gz",
			want: "doc-1",
		},
		{
			name: "extra segments ignored",
			key:  "user-1/course-1/doc-1.pdf/extra",
			want: "doc-1",
		},
		{
			name: "too few segments",
			key:  "user-1/doc-1.pdf",
			want: "",
		},
		{
			name: "empty key",
			key:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKeyDocumentID(tt.key))
		})
	}
}
