package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/tylerearls/folio/pkg/config"
)

func main() {
	// generate schema for Config
	schema := config.GenerateSchema()
	schema.ID = "https://github.com/tylerearls/folio/pkg/config/config"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal schema: %v", err)
	}

	outputPath := "schema.json"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	if err := os.WriteFile(outputPath, append(data, '\n'), 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		log.Fatalf("failed to write schema file: %v", err)
	}

	fmt.Printf("schema written to %s\n", outputPath)
}
