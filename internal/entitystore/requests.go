package entitystore

import "github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"

// KeyUniqueID names the entry an update request replaces.
const KeyUniqueID = "unique_id"

// Request envelopes. Platform-specific data is validated afterwards by
// the schema registry; unknown top-level keys are tolerated.
var (
	createRequestSchema = schema.MustNew(
		schema.Required(schema.KeyPlatform, schema.String()),
		schema.Required(schema.KeyData, schema.Mapping()),
	).AllowExtra()

	updateRequestSchema = createRequestSchema.MustExtend(
		schema.Required(KeyUniqueID, schema.String()),
	)
)

// CreateRequest is a validated create request.
type CreateRequest struct {
	Record schema.Record
}

// UpdateRequest is a validated update request.
type UpdateRequest struct {
	UniqueID string
	Record   schema.Record
}

// ParseCreate validates a raw create request against reg.
func ParseCreate(reg *schema.Registry, raw map[string]any) (CreateRequest, error) {
	if _, err := schema.Validate(createRequestSchema, raw); err != nil {
		return CreateRequest{}, err
	}
	rec, err := reg.ValidateRecord(raw)
	if err != nil {
		return CreateRequest{}, err
	}
	delete(rec.Extra, KeyUniqueID)
	return CreateRequest{Record: rec}, nil
}

// ParseUpdate validates a raw update request against reg.
func ParseUpdate(reg *schema.Registry, raw map[string]any) (UpdateRequest, error) {
	envelope, err := schema.Validate(updateRequestSchema, raw)
	if err != nil {
		return UpdateRequest{}, err
	}
	rec, err := reg.ValidateRecord(raw)
	if err != nil {
		return UpdateRequest{}, err
	}
	delete(rec.Extra, KeyUniqueID)
	return UpdateRequest{UniqueID: envelope[KeyUniqueID].(string), Record: rec}, nil
}
