// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package catalog

import "fmt"

// Base for all catalog operations.
type CatalogRequest struct {
	Namespace string
	Scope     string // optional
}

type ListTablesRequest struct {
	CatalogRequest
}

type SchemaRequest struct {
	CatalogRequest

	Table string
}

// CatalogUnavailableError reports a failed table listing.
type CatalogUnavailableError struct {
	Namespace string
	Status    int
	Message   string
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("catalog unavailable for namespace %q (status %d): %s", e.Namespace, e.Status, e.Message)
}

// SchemaUnavailableError reports a failed schema fetch.
type SchemaUnavailableError struct {
	Namespace string
	Table     string
	Status    int
	Message   string
}

func (e *SchemaUnavailableError) Error() string {
	return fmt.Sprintf("schema unavailable for %s/%s (status %d): %s", e.Namespace, e.Table, e.Status, e.Message)
}
