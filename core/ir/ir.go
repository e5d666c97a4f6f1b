// Package ir is the intermediate representation of generated Go code.
// Synthesis builds declarations from these types; package render turns them
// into formatted source. Expressions that carry no structure worth testing
// are kept as Code.
package ir

import (
	"sort"
	"strconv"
)

// Import is one import path with an optional alias.
type Import struct {
	Path  string
	Alias string
}

// SortImports orders imports by path and removes duplicates.
func SortImports(imports []Import) []Import {
	seen := make(map[string]Import, len(imports))
	for _, imp := range imports {
		if prev, ok := seen[imp.Path]; ok && prev.Alias != "" {
			continue
		}
		seen[imp.Path] = imp
	}
	out := make([]Import, 0, len(seen))
	for _, imp := range seen {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Param is a function parameter or result.
type Param struct {
	Name string
	Type string
}

// Field is a struct field.
type Field struct {
	Name string
	Type string
	Tag  string
	Doc  string
}

// --- Declarations ---

// Decl is a top-level declaration.
type Decl interface {
	DeclName() string
	DeclImports() []Import
}

// TypeDecl declares a named type. Exactly one of Struct, Interface or
// Underlying describes it. Alias emits `type Name = Underlying`.
type TypeDecl struct {
	Doc        string
	Name       string
	Struct     []Field
	Interface  []string // method signatures
	Underlying string
	Alias      bool
	Imports    []Import
}

func (d *TypeDecl) DeclName() string      { return d.Name }
func (d *TypeDecl) DeclImports() []Import { return d.Imports }

// IsStruct reports whether the declaration is a struct type.
func (d *TypeDecl) IsStruct() bool { return d.Underlying == "" && d.Interface == nil }

// VarDecl declares a package-level variable.
type VarDecl struct {
	Doc     string
	Name    string
	Type    string
	Value   Expr
	Imports []Import
}

func (d *VarDecl) DeclName() string      { return d.Name }
func (d *VarDecl) DeclImports() []Import { return d.Imports }

// FuncDecl declares a function, or a method when Recv is set.
type FuncDecl struct {
	Doc     string
	Recv    *Param
	Name    string
	Params  []Param
	Results []Param
	Body    Block
	Imports []Import
}

// DeclName is the function name, qualified by the receiver type for methods
// so that methods of different types never collide.
func (d *FuncDecl) DeclName() string {
	if d.Recv != nil {
		return d.Recv.Type + "." + d.Name
	}
	return d.Name
}

func (d *FuncDecl) DeclImports() []Import { return d.Imports }

// --- Statements ---

// Block is a statement list.
type Block []Stmt

// Stmt is a statement.
type Stmt interface{ stmt() }

// Define is `a, b := Value`.
type Define struct {
	Names []string
	Value Expr
}

// Assign is `a, b = Value`.
type Assign struct {
	Names []string
	Value Expr
}

// Var is `var Name Type = Value`; Type or Value may be empty.
type Var struct {
	Name  string
	Type  string
	Value Expr
}

// If is `if Init; Cond { Then } else { Else }`.
type If struct {
	Init Stmt
	Cond Expr
	Then Block
	Else Block
}

// Return returns Values.
type Return struct {
	Values []Expr
}

// ExprStmt evaluates X for its side effects.
type ExprStmt struct {
	X Expr
}

// Range is `for Key, Value := range X { Body }`. Key may be "_" and Value empty.
type Range struct {
	Key   string
	Value string
	X     Expr
	Body  Block
}

// For is `for Cond { Body }`; a nil Cond loops forever.
type For struct {
	Cond Expr
	Body Block
}

// Case is one switch clause. A nil Values slice is the default clause.
type Case struct {
	Values []Expr
	Body   Block
}

// Switch is an expression switch, or a type switch when TypeOf is set:
// `switch Bind := TypeOf.(type)`.
type Switch struct {
	Tag    Expr
	TypeOf Expr
	Bind   string
	Cases  []Case
}

// Comment is a line comment.
type Comment struct {
	Text string
}

func (Define) stmt()   {}
func (Assign) stmt()   {}
func (Var) stmt()      {}
func (If) stmt()       {}
func (Return) stmt()   {}
func (ExprStmt) stmt() {}
func (Range) stmt()    {}
func (For) stmt()      {}
func (Switch) stmt()   {}
func (Comment) stmt()  {}

// --- Expressions ---

// Expr is an expression.
type Expr interface{ expr() }

// Code is an expression written out verbatim.
type Code string

// Call is `Fun(Args...)`.
type Call struct {
	Fun  string
	Args []Expr
}

// FuncLit is an anonymous function.
type FuncLit struct {
	Params  []Param
	Results []Param
	Body    Block
}

// KeyValue is one element of a composite literal.
type KeyValue struct {
	Key   string
	Value Expr
}

// Composite is `Type{Key: Value, ...}`.
type Composite struct {
	Type   string
	Fields []KeyValue
}

func (Code) expr()      {}
func (Call) expr()      {}
func (FuncLit) expr()   {}
func (Composite) expr() {}

// Quote returns the Go string literal of s.
func Quote(s string) Code { return Code(strconv.Quote(s)) }

// Ident returns the expression naming a variable.
func Ident(name string) Code { return Code(name) }

// Codes converts names to expressions.
func Codes(names ...string) []Expr {
	out := make([]Expr, len(names))
	for i, n := range names {
		out[i] = Code(n)
	}
	return out
}

// ReturnErr is `return <zero results...>, err` for a function with results.
func ReturnErr(zeros ...string) Return {
	return Return{Values: append(Codes(zeros...), Code("err"))}
}

// CheckErr is `if err != nil { return zeros..., err }`.
func CheckErr(zeros ...string) If {
	return If{Cond: Code("err != nil"), Then: Block{ReturnErr(zeros...)}}
}
