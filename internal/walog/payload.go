package walog

import (
	"encoding/json"

	"github.com/bobboyms/fiberdb/internal/entity"
)

type insertPayload struct {
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Entity     *entity.Entity `json:"entity"`
}

type deletePayload struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

type edgePayload struct {
	EntityType string      `json:"entityType"`
	EntityID   string      `json:"entityId"`
	Edge       entity.Edge `json:"edge"`
}

// EncodeInsert builds the payload for an Insert/Update entry: a full
// post-write entity snapshot (spec §4.1 "Insert/Update(entityType,
// entityId, fullEntitySnapshot)").
func EncodeInsert(e *entity.Entity) ([]byte, error) {
	return json.Marshal(insertPayload{EntityType: e.Type, EntityID: e.ID, Entity: e})
}

func DecodeInsert(data []byte) (*entity.Entity, error) {
	var p insertPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p.Entity, nil
}

func EncodeDelete(entityType, entityID string) ([]byte, error) {
	return json.Marshal(deletePayload{EntityType: entityType, EntityID: entityID})
}

func DecodeDelete(data []byte) (entityType, entityID string, err error) {
	var p deletePayload
	if err = json.Unmarshal(data, &p); err != nil {
		return
	}
	return p.EntityType, p.EntityID, nil
}

// EncodeEdge builds the payload for AddEdge/RemoveEdge: the owning entity's
// reference plus the edge snapshot itself (for RemoveEdge, the snapshot of
// the edge that was removed, per spec §4.1).
func EncodeEdge(entityType, entityID string, edge entity.Edge) ([]byte, error) {
	return json.Marshal(edgePayload{EntityType: entityType, EntityID: entityID, Edge: edge})
}

func DecodeEdge(data []byte) (entityType, entityID string, edge entity.Edge, err error) {
	var p edgePayload
	if err = json.Unmarshal(data, &p); err != nil {
		return
	}
	return p.EntityType, p.EntityID, p.Edge, nil
}
