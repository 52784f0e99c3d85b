package serializer

import (
	"time"

	"github.com/mdouchement/x402vault/internal/model"
	"github.com/mdouchement/x402vault/internal/webserver/service"
)

// Objects returns the serialized form of the given models.
func Objects(objects []*model.Object, now time.Time) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(objects))

	for _, object := range objects {
		sl = append(sl, Object(object, now))
	}

	return sl
}

// Object returns the serialized form of the given model. The reported
// status is the effective one, even when the lazy transition has not been
// persisted yet.
func Object(object *model.Object, now time.Time) map[string]interface{} {
	payload := map[string]interface{}{
		"id":           object.Key,
		"name":         object.Name,
		"size":         object.Size,
		"content_type": object.ContentType,
		"uploaded_at":  object.UploadedAt,
		"read_count":   object.ReadCount,
		"status":       service.EffectiveStatus(object, now),
		"checksum":     object.ChecksumSHA256,
	}

	if !object.ExpiresAt.IsZero() {
		payload["expires_at"] = object.ExpiresAt
	}
	if object.MaxReads > 0 {
		payload["max_reads"] = object.MaxReads
		payload["remaining_reads"] = object.RemainingReads()
	}
	if object.OwnerAddress != "" {
		payload["owner_address"] = object.OwnerAddress
	}

	return payload
}

// Upload returns the serialized verification descriptor of an upload session.
func Upload(upload *model.Upload) map[string]interface{} {
	payload := map[string]interface{}{
		"object_key": upload.ObjectKey,
		"filename":   upload.Filename,
		"used":       upload.Used,
		"created_at": upload.CreatedAt,
	}

	if upload.Used {
		payload["size"] = upload.ActualSize
		payload["checksum_sha256"] = upload.ChecksumSHA256
		payload["completed_at"] = upload.CompletedAt
		payload["storage_key"] = upload.StorageKey
	}
	if upload.PaymentSignature != "" {
		payload["payment_signature"] = upload.PaymentSignature
	}
	if upload.UploaderAddress != "" {
		payload["uploader_address"] = upload.UploaderAddress
	}

	return payload
}
