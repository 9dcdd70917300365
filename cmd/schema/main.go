package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"officegame/protocol"
)

// 把线上协议反射成 JSON Schema，供前端在边界处做帧校验
// 用法：schema -out docs/wire-protocol.schema.json
func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// wireCatalog 汇总双向全部消息类型，一次反射出完整文档
type wireCatalog struct {
	Join            protocol.Join            `json:"join"`
	Move            protocol.Move            `json:"move"`
	Location        protocol.Location        `json:"location"`
	Update          protocol.Update          `json:"update"`
	Snapshot        protocol.Snapshot        `json:"snapshot"`
	Joined          protocol.Joined          `json:"joined"`
	Moved           protocol.Moved           `json:"moved"`
	LocationChanged protocol.LocationChanged `json:"location_changed"`
	Updated         protocol.Updated         `json:"updated"`
	Left            protocol.Left            `json:"left"`
	Error           protocol.Error           `json:"error"`
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireCatalog))
	schema.Title = "office-game presence wire protocol"
	schema.Description = "Validates the JSON frames exchanged on /ws"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
