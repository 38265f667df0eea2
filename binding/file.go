package binding

// File is one binding metadata document. The same structure decodes from
// TOML, YAML and JSON.
type File struct {
	Library string   `toml:"library" yaml:"library" json:"library"`
	Structs []Struct `toml:"struct" yaml:"struct" json:"struct"`
	Enums   []Enum   `toml:"enum" yaml:"enum" json:"enum"`
	Classes []Class  `toml:"class" yaml:"class" json:"class"`
}

// Struct declares a native struct passed by pointer.
type Struct struct {
	Name   string  `toml:"name" yaml:"name" json:"name"`
	Fields []Field `toml:"fields" yaml:"fields" json:"fields"`
}

type Field struct {
	Name string `toml:"name" yaml:"name" json:"name"`
	Type string `toml:"type" yaml:"type" json:"type"`
}

// Enum declares a native enumeration; cases take values 0..n-1.
type Enum struct {
	Name  string   `toml:"name" yaml:"name" json:"name"`
	Cases []string `toml:"cases" yaml:"cases" json:"cases"`
}

// Class declares a generated wrapper class.
type Class struct {
	Name       string     `toml:"name" yaml:"name" json:"name"`
	Native     string     `toml:"native" yaml:"native" json:"native"`
	Parent     string     `toml:"parent" yaml:"parent" json:"parent"`
	Library    string     `toml:"library" yaml:"library" json:"library"`
	Prefix     string     `toml:"prefix" yaml:"prefix" json:"prefix"`
	Ops        []Op       `toml:"op" yaml:"op" json:"op"`
	Properties []Property `toml:"property" yaml:"property" json:"property"`
	Events     []Event    `toml:"event" yaml:"event" json:"event"`
}

type Op struct {
	Result  *Param  `toml:"result" yaml:"result" json:"result"`
	Symbol  string  `toml:"symbol" yaml:"symbol" json:"symbol"`
	Method  string  `toml:"method" yaml:"method" json:"method"`
	Params  []Param `toml:"params" yaml:"params" json:"params"`
	Virtual bool    `toml:"virtual" yaml:"virtual" json:"virtual"`
	Static  bool    `toml:"static" yaml:"static" json:"static"`
}

// Param is a parameter or result. Transfer is "none" (default) or "full";
// direction is "in" (default), "out" or "inout".
type Param struct {
	Name      string `toml:"name" yaml:"name" json:"name"`
	Type      string `toml:"type" yaml:"type" json:"type"`
	Transfer  string `toml:"transfer" yaml:"transfer" json:"transfer"`
	Direction string `toml:"direction" yaml:"direction" json:"direction"`
}

type Property struct {
	Name   string `toml:"name" yaml:"name" json:"name"`
	Getter string `toml:"getter" yaml:"getter" json:"getter"`
	Setter string `toml:"setter" yaml:"setter" json:"setter"`
}

// Event declares a native event. Payload is one of none, bool, int, float
// or object.
type Event struct {
	Name    string `toml:"name" yaml:"name" json:"name"`
	Payload string `toml:"payload" yaml:"payload" json:"payload"`
}

// Class returns the declared class named name.
func (f *File) Class(name string) (*Class, bool) {
	for i := range f.Classes {
		if f.Classes[i].Name == name {
			return &f.Classes[i], true
		}
	}
	return nil, false
}
