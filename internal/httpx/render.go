package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/haukened/objvault/internal/domain"
)

// objectView is the wire representation of a domain.Object. Internal
// status values (WRITING/DELETING) never reach a caller: only COMMITTED
// objects are ever rendered, so Status is omitted rather than exposed.
type objectView struct {
	ID           string            `json:"id"`
	Namespace    string            `json:"namespace"`
	Key          *string           `json:"key,omitempty"`
	StorageClass string            `json:"storage_class"`
	ContentHash  string            `json:"content_hash"`
	SizeBytes    int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func newObjectView(o *domain.Object) objectView {
	v := objectView{
		ID:           o.ID.String(),
		Namespace:    o.Namespace.String(),
		StorageClass: o.StorageClass.String(),
		ContentType:  o.ContentType,
		Metadata:     o.Metadata,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	if o.Key != nil {
		s := o.Key.String()
		v.Key = &s
	}
	if o.ContentHash != nil {
		v.ContentHash = o.ContentHash.String()
	}
	if o.SizeBytes != nil {
		v.SizeBytes = *o.SizeBytes
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
