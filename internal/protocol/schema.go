package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	TypeHello:       "hello.schema.json",
	TypeWelcome:     "welcome.schema.json",
	TypeCommand:     "command.schema.json",
	TypeAttackBlock: "attack_block.schema.json",
	TypeUseBlock:    "use_block.schema.json",
	TypeMessage:     "message.schema.json",
	TypeError:       "error.schema.json",
}

var schemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	out := make(map[string]*jsonschema.Schema, len(schemaFiles))
	for typ, name := range schemaFiles {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			panic(err)
		}
		url := "mem://protocol/" + name
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			panic(fmt.Sprintf("schema %s: %v", name, err))
		}
		s, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("schema %s: %v", name, err))
		}
		out[typ] = s
	}
	return out
}

// Validate checks raw against the schema registered for msgType.
func Validate(msgType string, raw []byte) error {
	s, ok := schemas[msgType]
	if !ok {
		return fmt.Errorf("unknown message type %q", msgType)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%s: %w", msgType, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %s", msgType, firstLine(err.Error()))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
