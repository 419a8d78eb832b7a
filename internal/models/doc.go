// Package models defines the client entities of the record set.
//
// The package contains two entity views of the same person record:
//
//   - [Client] : full projection with separate passport parts, phone, email and address
//   - [ClientShort] : compressed projection with a combined passport, one contact and initials
//
// Both are built only through validated construction from a [Source], a small tagged union over
// the accepted inputs (mapping, JSON object, delimited string, another entity). Every source is
// resolved into one canonical field mapping before validation, so all inputs share the same rules.
//
// Duplicate detection uses [SameClient], an explicit natural-key comparison that ignores id and
// address. Raw records that fail validation are reported as [RecordError] values.
package models
