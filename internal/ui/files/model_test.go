package files

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/epikom-hub/internal/model"
)

func TestCanDelete(t *testing.T) {
	admin := model.Profile{ID: "a1", Role: model.RoleAdmin}
	client := model.Profile{ID: "c1", Role: model.RoleClient}
	other := model.Profile{ID: "c2", Role: model.RoleClient}

	uploader := "c1"
	owned := model.FileRecord{ID: "f1", UploadedBy: &uploader}
	orphan := model.FileRecord{ID: "f2"}

	assert.True(t, CanDelete(admin, owned))
	assert.True(t, CanDelete(admin, orphan))
	assert.True(t, CanDelete(client, owned))
	assert.False(t, CanDelete(other, owned))
	assert.False(t, CanDelete(client, orphan))
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", mimeType("brief.PDF"))
	assert.Equal(t, "application/octet-stream", mimeType("notes.unknownext"))
}
