package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// FileConfig is the optional HCL startup file. Flags override it.
type FileConfig struct {
	Server ServerSettings `hcl:"server,block"`
}

type ServerSettings struct {
	Listen        string `hcl:"listen,optional"`
	WSListen      string `hcl:"ws_listen,optional"`
	MetricsListen string `hcl:"metrics_listen,optional"`
	LogLevel      string `hcl:"log_level,optional"`
	AdminPassword string `hcl:"admin_password,optional"`
	ArchiveExpire int    `hcl:"conarchive_expire,optional"`
}

// LoadFileConfig parses the HCL file; a missing file yields defaults.
func LoadFileConfig(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &FileConfig{}, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg FileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	return &cfg, nil
}
