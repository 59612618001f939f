// Package marshall serializes structured content objects to
// namespace-qualified XML documents and applies such documents back onto
// objects.
//
// A Registry binds namespace URIs (Dublin Core, Archetypes, CMF, ...) to
// document prefixes and to the marshalers they contribute per field kind.
// The registry is filled at startup and frozen with Finalize; registration
// order is marshaling precedence. A Dispatcher marshals single fields by
// kind, and an Assembler marshals whole objects in schema order.
//
// Around that core the package exposes a Service that stores items in a
// Repository, exports them as XML into a BlobStore and imports documents
// back. Repository and blob store implementations live under repo/ and
// storage/.
package marshall
