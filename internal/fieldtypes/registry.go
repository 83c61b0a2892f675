package fieldtypes

import "sort"

// Registry is the read-only field type catalog. It is seeded once at
// startup and safe for concurrent use.
type Registry struct {
	byID    map[int]*FieldType
	byIdent map[string]*FieldType
	shared  []Characteristic
}

// NewRegistry builds a registry from a catalog and its shared
// characteristic groups.
func NewRegistry(types []*FieldType, shared []Characteristic) *Registry {
	r := &Registry{
		byID:    make(map[int]*FieldType, len(types)),
		byIdent: make(map[string]*FieldType, len(types)),
		shared:  shared,
	}
	for _, ft := range types {
		r.byID[ft.ID] = ft
		r.byIdent[ft.Identifier] = ft
	}
	return r
}

// ByID returns the field type with the given ID.
func (r *Registry) ByID(id int) (*FieldType, bool) {
	ft, ok := r.byID[id]
	return ft, ok
}

// ByIdentifier returns the field type with the given identifier string.
func (r *Registry) ByIdentifier(identifier string) (*FieldType, bool) {
	ft, ok := r.byIdent[identifier]
	return ft, ok
}

// All returns the catalog ordered by ID.
func (r *Registry) All() []*FieldType {
	out := make([]*FieldType, 0, len(r.byID))
	for _, ft := range r.byID {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IdentifierMap returns a map of field type ID to identifier.
func (r *Registry) IdentifierMap() map[int]string {
	m := make(map[int]string, len(r.byID))
	for id, ft := range r.byID {
		m[id] = ft.Identifier
	}
	return m
}

// IsFileField reports whether the field type with the given ID is a file
// upload type. Unknown IDs report false.
func (r *Registry) IsFileField(id int) bool {
	ft, ok := r.byID[id]
	return ok && ft.IsFileField
}

// IsDateField reports whether the field type with the given ID holds a
// date value. Unknown IDs report false.
func (r *Registry) IsDateField(id int) bool {
	ft, ok := r.byID[id]
	return ok && ft.IsDateField
}

// SharedSettingMap returns the old-setting to new-setting mapping for a
// field changing type from oldTypeID to newTypeID. Settings of the old
// type that do not appear in the map have no equivalent under the new
// type and must be deleted.
func (r *Registry) SharedSettingMap(oldTypeID, newTypeID int) map[int]int {
	oldType, okOld := r.byID[oldTypeID]
	newType, okNew := r.byID[newTypeID]
	if !okOld || !okNew || oldTypeID == newTypeID {
		return map[int]int{}
	}

	mapping := make(map[int]int)
	for _, group := range r.shared {
		oldSetting, hasOld := group.Members[oldType.Identifier]
		newSetting, hasNew := group.Members[newType.Identifier]
		if hasOld && hasNew {
			mapping[oldSetting] = newSetting
		}
	}
	return mapping
}
