package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cbtjournal/internal/flagx"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the server configuration. Only keys
// present in the file override the current values.
type FileConfig struct {
	EndpointAddrGRPC *string `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP *string `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN      *string `json:"database_dsn" yaml:"database_dsn"`
	SecretKey        *string `json:"secret_key" yaml:"secret_key"`
	S3RootUser       *string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword   *string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket         *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region         *string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint   *string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
}

// parseFile loads the file named by -c or -config. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON. Errors panic.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	for dst, src := range map[*string]*string{
		&config.EndpointAddrGRPC: fc.EndpointAddrGRPC,
		&config.EndpointAddrHTTP: fc.EndpointAddrHTTP,
		&config.DatabaseDSN:      fc.DatabaseDSN,
		&config.SecretKey:        fc.SecretKey,
		&config.S3RootUser:       fc.S3RootUser,
		&config.S3RootPassword:   fc.S3RootPassword,
		&config.S3Bucket:         fc.S3Bucket,
		&config.S3Region:         fc.S3Region,
		&config.S3BaseEndpoint:   fc.S3BaseEndpoint,
	} {
		if src != nil {
			*dst = *src
		}
	}
}
