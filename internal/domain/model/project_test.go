//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateProjectRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateProjectRequest
		wantErr string
	}{
		{name: "valid", req: CreateProjectRequest{Name: "Roadmap"}},
		{name: "with description", req: CreateProjectRequest{Name: "Roadmap", Description: strPtr("Q3 plans")}},
		{name: "empty name", req: CreateProjectRequest{}, wantErr: "name is required and cannot be empty"},
		{name: "whitespace name", req: CreateProjectRequest{Name: "   "}, wantErr: "name is required and cannot be empty"},
		{
			name:    "name at limit counts runes",
			req:     CreateProjectRequest{Name: strings.Repeat("é", 255)},
			wantErr: "",
		},
		{name: "name too long", req: CreateProjectRequest{Name: strings.Repeat("a", 256)}, wantErr: "name cannot exceed 255 characters"},
		{
			name:    "description too long",
			req:     CreateProjectRequest{Name: "x", Description: strPtr(strings.Repeat("d", 4097))},
			wantErr: "description cannot exceed 4096 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestUpdateProjectRequest_Validate(t *testing.T) {
	assert.EqualError(t, (&UpdateProjectRequest{}).Validate(), "at least one field must be updated")
	assert.EqualError(t, (&UpdateProjectRequest{Name: strPtr("")}).Validate(), "name is required and cannot be empty")
	assert.NoError(t, (&UpdateProjectRequest{Description: strPtr("")}).Validate())
	assert.NoError(t, (&UpdateProjectRequest{Name: strPtr("Renamed")}).Validate())
}
