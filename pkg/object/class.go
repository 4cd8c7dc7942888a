package object

import "github.com/pyro-lang/pyro/pkg/value"

// Class holds everything spec.md §3 lists: the name, an optional
// superclass, two method maps (all vs. pub-only — pub-only is consulted
// by CALL_PUB_METHOD/GET_PUB_FIELD for external callers), two
// field-index maps, the vector of default field values new instances
// are stamped from, static members, a cached $init lookup, and a
// single-entry "last lookup" cache the VM's method-dispatch fast path
// consults before walking AllMethods.
type Class struct {
	Header
	Name            string
	Super           *Class
	AllMethods      map[string]value.Value
	PubMethods      map[string]value.Value
	AllFieldIndex   map[string]int
	PubFieldIndex   map[string]int
	DefaultFields   []value.Value
	Static          map[string]value.Value
	InitMethod      value.Value
	lastLookupName  string
	lastLookupValue value.Value
	lastLookupOK    bool
}

func (c *Class) Kind() value.ObjKind { return value.ObjClass }
func (c *Class) ObjHeader() *Header  { return &c.Header }
func (c *Class) Trace(walk func(value.Value)) {
	for _, m := range c.AllMethods {
		walk(m)
	}
	for _, d := range c.DefaultFields {
		walk(d)
	}
	for _, s := range c.Static {
		walk(s)
	}
	if !c.InitMethod.IsNull() {
		walk(c.InitMethod)
	}
}

// NewClass builds an empty class. Copying a superclass's method and
// field tables is INHERIT's job at the bytecode level; this constructor
// is what MAKE_CLASS uses before INHERIT runs, so callers call
// Inherit(super) explicitly.
func NewClass(name string) *Class {
	return &Class{
		Name:          name,
		AllMethods:    make(map[string]value.Value),
		PubMethods:    make(map[string]value.Value),
		AllFieldIndex: make(map[string]int),
		PubFieldIndex: make(map[string]int),
		Static:        make(map[string]value.Value),
	}
}

// Inherit copies super's method and field tables into c (INHERIT's
// semantics) and records the link for super: sends.
func (c *Class) Inherit(super *Class) {
	c.Super = super
	for k, v := range super.AllMethods {
		c.AllMethods[k] = v
	}
	for k, v := range super.PubMethods {
		c.PubMethods[k] = v
	}
	for k, idx := range super.AllFieldIndex {
		c.AllFieldIndex[k] = idx
	}
	for k, idx := range super.PubFieldIndex {
		c.PubFieldIndex[k] = idx
	}
	c.DefaultFields = append([]value.Value(nil), super.DefaultFields...)
	if !super.InitMethod.IsNull() {
		c.InitMethod = super.InitMethod
	}
}

// DefineMethod installs a method, keeping the all/pub invariant from
// spec.md §3 (pub methods are always present in AllMethods too) and
// refreshing the cached $init lookup.
func (c *Class) DefineMethod(name string, fn value.Value, public bool) {
	c.AllMethods[name] = fn
	if public {
		c.PubMethods[name] = fn
	}
	if name == "$init" {
		c.InitMethod = fn
	}
	c.lastLookupOK = false
}

// DefineField reserves the next field slot for name with the given
// default value, returning its index.
func (c *Class) DefineField(name string, defaultValue value.Value, public bool) int {
	idx := len(c.DefaultFields)
	c.DefaultFields = append(c.DefaultFields, defaultValue)
	c.AllFieldIndex[name] = idx
	if public {
		c.PubFieldIndex[name] = idx
	}
	return idx
}

// LookupMethod looks name up in c's own method tables; inherited methods
// are found there because Inherit copied them in, and no superclass
// chain is walked. Non-pub lookups consult (and refresh) the
// single-entry cache first.
func (c *Class) LookupMethod(name string, pubOnly bool) (value.Value, bool) {
	if !pubOnly && c.lastLookupOK && c.lastLookupName == name {
		return c.lastLookupValue, true
	}
	table := c.AllMethods
	if pubOnly {
		table = c.PubMethods
	}
	v, ok := table[name]
	if ok && !pubOnly {
		c.lastLookupName = name
		c.lastLookupValue = v
		c.lastLookupOK = true
	}
	return v, ok
}

// Instance is a flexible-length field array sized from its class's
// default-field-values vector at construction time.
type Instance struct {
	Header
	Fields []value.Value
}

func (i *Instance) Kind() value.ObjKind { return value.ObjInstance }
func (i *Instance) ObjHeader() *Header  { return &i.Header }
func (i *Instance) Trace(walk func(value.Value)) {
	for _, f := range i.Fields {
		walk(f)
	}
}

// NewInstance stamps a new instance's field array from cls's defaults.
func NewInstance(cls *Class) *Instance {
	inst := &Instance{Fields: append([]value.Value(nil), cls.DefaultFields...)}
	inst.Class = cls
	return inst
}

// BoundMethod pairs a receiver with the closure or native function that
// will be invoked with that receiver bound as self/argv[-1].
type BoundMethod struct {
	Header
	Receiver value.Value
	Method   value.Value
}

func (b *BoundMethod) Kind() value.ObjKind { return value.ObjBoundMethod }
func (b *BoundMethod) ObjHeader() *Header  { return &b.Header }
func (b *BoundMethod) Trace(walk func(value.Value)) {
	walk(b.Receiver)
	walk(b.Method)
}

// Module is a loaded unit of Pyro code: its top-level globals become
// Members, addressable both by the name->index maps (all vs pub-only,
// mirroring Class) and, for the module object itself, via GET_MEMBER.
type Module struct {
	Header
	Name      string
	Members   []value.Value
	AllIndex  map[string]int
	PubIndex  map[string]int
}

func (m *Module) Kind() value.ObjKind { return value.ObjModule }
func (m *Module) ObjHeader() *Header  { return &m.Header }
func (m *Module) Trace(walk func(value.Value)) {
	for _, v := range m.Members {
		walk(v)
	}
}

// NewModule builds an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, AllIndex: make(map[string]int), PubIndex: make(map[string]int)}
}

// Define reserves the next member slot for name, returning its index.
func (m *Module) Define(name string, val value.Value, public bool) int {
	idx := len(m.Members)
	m.Members = append(m.Members, val)
	m.AllIndex[name] = idx
	if public {
		m.PubIndex[name] = idx
	}
	return idx
}

// Get looks up a member by name, honoring pubOnly; GET_MEMBER (`a::x`)
// and IMPORT_NAMED_MEMBERS (`import a::{x}`) both use the pub-only form.
func (m *Module) Get(name string, pubOnly bool) (value.Value, bool) {
	index := m.AllIndex
	if pubOnly {
		index = m.PubIndex
	}
	idx, ok := index[name]
	if !ok {
		return value.Null, false
	}
	return m.Members[idx], true
}

// Set reassigns an already-defined member (SET_GLOBAL's job at module
// scope), returning false if name was never Define'd.
func (m *Module) Set(name string, val value.Value) bool {
	idx, ok := m.AllIndex[name]
	if !ok {
		return false
	}
	m.Members[idx] = val
	return true
}
