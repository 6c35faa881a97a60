// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/scc-digitalhub/dap-export-sdk/sdk/config"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/relay"
	"github.com/scc-digitalhub/dap-export-sdk/sdk/services/auth"
)

type CatalogService struct {
	http   config.CoreHTTP
	tokens *auth.TokenService
}

func NewCatalogService(conf config.Config, tokens *auth.TokenService) (*CatalogService, error) {
	if conf.Core.BaseURL == "" {
		return nil, errors.New("invalid core config")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	return &CatalogService{
		http:   config.NewHTTPCore(nil, conf),
		tokens: tokens,
	}, nil
}

// ListTables performs GET {base}/dap/query/{namespace}/table and returns
// the table names.
func (s *CatalogService) ListTables(ctx context.Context, req ListTablesRequest) ([]string, error) {
	if req.Namespace == "" {
		return nil, errors.New("namespace not specified")
	}

	headers, err := s.tokens.BearerHeaders(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]string{"scope": req.Scope}
	url := s.http.BuildURL(params, "query", req.Namespace, "table")
	env, err := s.http.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, fmt.Errorf("list tables failed: %w", err)
	}
	if env.Status != http.StatusOK {
		return nil, &CatalogUnavailableError{
			Namespace: req.Namespace,
			Status:    env.Status,
			Message:   relay.ErrorMessage(env),
		}
	}

	var body struct {
		Tables []string `json:"tables"`
	}
	if err := env.Payload.AsJSON(&body); err != nil {
		return nil, fmt.Errorf("invalid table listing: %w", err)
	}
	return body.Tables, nil
}

// GetTableSchema performs GET {base}/dap/query/{namespace}/table/{table}/schema.
// The schema is returned as-is; its shape is owned by the vendor.
func (s *CatalogService) GetTableSchema(ctx context.Context, req SchemaRequest) (map[string]interface{}, error) {
	if req.Namespace == "" {
		return nil, errors.New("namespace not specified")
	}
	if req.Table == "" {
		return nil, errors.New("table not specified")
	}

	headers, err := s.tokens.BearerHeaders(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]string{"scope": req.Scope}
	url := s.http.BuildURL(params, "query", req.Namespace, "table", req.Table, "schema")
	env, err := s.http.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, fmt.Errorf("get table schema failed: %w", err)
	}
	if env.Status != http.StatusOK {
		return nil, &SchemaUnavailableError{
			Namespace: req.Namespace,
			Table:     req.Table,
			Status:    env.Status,
			Message:   relay.ErrorMessage(env),
		}
	}

	var schema map[string]interface{}
	if err := env.Payload.AsJSON(&schema); err != nil {
		return nil, fmt.Errorf("invalid schema response: %w", err)
	}
	return schema, nil
}
