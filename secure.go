package fiberdb

import (
	"github.com/bobboyms/fiberdb/internal/config"
	"github.com/bobboyms/fiberdb/internal/entity"
)

// Decryptor and Encryptor re-export the configuration package's field-level
// encryption hooks at the public API surface (spec §6.1).
type Decryptor = config.Decryptor
type Encryptor = config.Encryptor

// secureFieldListKey is the attribute entities use to mark which fields
// carry ciphertext (spec §6 "a __secure field list").
const secureFieldListKey = "__secure"

// DecryptSecureFields replaces every field named in ent's "__secure" list
// with its plaintext, using key and the engine's configured Decryptor. It
// is a no-op if ent has no such list or no Decryptor is configured (spec
// §6.1: the coordinator stays a black box around this concern — it never
// decrypts on its own).
func (e *Engine) DecryptSecureFields(ent *entity.Entity, key []byte) error {
	if e.cfg.Decryptor == nil || ent == nil {
		return nil
	}
	fields := secureFieldNames(ent)
	for _, field := range fields {
		v, ok := ent.Attributes[field]
		ciphertext, isString := v.AsString()
		if !ok || !isString {
			continue
		}
		plaintext, err := e.cfg.Decryptor.Decrypt(ciphertext, key)
		if err != nil {
			return err
		}
		ent.Attributes[field] = entity.String(plaintext)
	}
	return nil
}

// EncryptSecureFields is DecryptSecureFields's write-path counterpart,
// applied by the caller before SaveEntity if it wants fields encrypted at
// rest.
func (e *Engine) EncryptSecureFields(ent *entity.Entity, key []byte) error {
	if e.cfg.Encryptor == nil || ent == nil {
		return nil
	}
	fields := secureFieldNames(ent)
	for _, field := range fields {
		v, ok := ent.Attributes[field]
		plaintext, isString := v.AsString()
		if !ok || !isString {
			continue
		}
		ciphertext, err := e.cfg.Encryptor.Encrypt(plaintext, key)
		if err != nil {
			return err
		}
		ent.Attributes[field] = entity.String(ciphertext)
	}
	return nil
}

func secureFieldNames(ent *entity.Entity) []string {
	v, ok := ent.Attributes[secureFieldListKey]
	if !ok {
		return nil
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil
	}
	names := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.AsString(); ok {
			names = append(names, s)
		}
	}
	return names
}
