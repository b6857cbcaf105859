package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	driverrors "github.com/globomap/acs-driver/internal/errors"
	"github.com/globomap/acs-driver/internal/logger"
	"github.com/globomap/acs-driver/pkg/types"
)

var labelPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var cypherOperators = map[string]string{
	"==": "=",
	"!=": "<>",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// Statement is one parameterized Cypher query
type Statement struct {
	Cypher string
	Params map[string]any
}

// Runner executes statements in a single write transaction
type Runner interface {
	ExecuteWrite(ctx context.Context, statements []Statement) error
}

// Neo4jConfig configures the direct graph sink
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) ExecuteWrite(ctx context.Context, statements []Statement) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: r.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range statements {
			result, err := tx.Run(ctx, s.Cypher, s.Params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Neo4j applies documents straight to a graph database, standing in for
// the loader. Node collections become labels, edge collections become
// relationship types and every element is addressed by its key.
type Neo4j struct {
	runner Runner
	close  func(ctx context.Context) error
	logger logger.Logger
}

var _ BatchSink = (*Neo4j)(nil)

// NewNeo4j opens a driver and verifies connectivity
func NewNeo4j(ctx context.Context, config Neo4jConfig, log logger.Logger) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, driverrors.TransportError(driverrors.ComponentNeo4j, "failed to create Neo4j driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, driverrors.TransportError(driverrors.ComponentNeo4j, "failed to verify Neo4j connectivity", err)
	}

	s := NewNeo4jWithRunner(&driverRunner{driver: driver, database: config.Database}, log)
	s.close = driver.Close
	return s, nil
}

// NewNeo4jWithRunner builds the sink on top of runner
func NewNeo4jWithRunner(runner Runner, log logger.Logger) *Neo4j {
	return &Neo4j{runner: runner, logger: log.WithField("sink", "neo4j")}
}

// Publish applies doc in its own transaction
func (s *Neo4j) Publish(ctx context.Context, doc types.Document) error {
	return s.PublishBatch(ctx, []types.Document{doc})
}

// PublishBatch applies docs in order inside one transaction
func (s *Neo4j) PublishBatch(ctx context.Context, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var statements []Statement
	for _, doc := range docs {
		stmts, err := Statements(doc)
		if err != nil {
			return driverrors.Wrap(err, driverrors.ErrorTypeValidation, driverrors.ComponentNeo4j,
				fmt.Sprintf("cannot translate %s %s document", doc.Action, doc.Collection))
		}
		statements = append(statements, stmts...)
	}

	if err := s.runner.ExecuteWrite(ctx, statements); err != nil {
		return driverrors.PublishError(driverrors.ComponentNeo4j, docs[0].Collection, err)
	}
	s.logger.WithField("statements", len(statements)).Debug("Documents applied")
	return nil
}

// Close releases the driver
func (s *Neo4j) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Statements translates one document into Cypher
func Statements(doc types.Document) ([]Statement, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if !labelPattern.MatchString(doc.Collection) {
		return nil, fmt.Errorf("invalid collection name %q", doc.Collection)
	}

	switch doc.Action {
	case types.ActionDelete:
		return deleteStatements(doc), nil
	case types.ActionClear:
		return clearStatements(doc)
	}

	fields, err := flatten(doc.Element)
	if err != nil {
		return nil, err
	}
	if doc.Type == types.TypeEdges {
		return edgeStatements(doc, fields)
	}
	return nodeStatements(doc, fields), nil
}

func nodeStatements(doc types.Document, props map[string]any) []Statement {
	props["key"] = doc.Key
	return []Statement{{
		Cypher: fmt.Sprintf("MERGE (n:`%s` {key: $key}) SET n += $props", doc.Collection),
		Params: map[string]any{"key": doc.Key, "props": props},
	}}
}

func edgeStatements(doc types.Document, props map[string]any) ([]Statement, error) {
	from, _ := props["from"].(string)
	to, _ := props["to"].(string)
	fromLabel, fromKey, err := splitLink(from)
	if err != nil {
		return nil, err
	}
	toLabel, toKey, err := splitLink(to)
	if err != nil {
		return nil, err
	}
	props["key"] = doc.Key

	return []Statement{
		{
			Cypher: fmt.Sprintf("MATCH ()-[old:`%s` {key: $key}]->() DELETE old", doc.Collection),
			Params: map[string]any{"key": doc.Key},
		},
		{
			Cypher: fmt.Sprintf("MERGE (a:`%s` {key: $from}) MERGE (b:`%s` {key: $to}) "+
				"MERGE (a)-[r:`%s` {key: $key}]->(b) SET r += $props", fromLabel, toLabel, doc.Collection),
			Params: map[string]any{"key": doc.Key, "from": fromKey, "to": toKey, "props": props},
		},
	}, nil
}

func deleteStatements(doc types.Document) []Statement {
	cypher := fmt.Sprintf("MATCH (n:`%s` {key: $key}) DETACH DELETE n", doc.Collection)
	if doc.Type == types.TypeEdges {
		cypher = fmt.Sprintf("MATCH ()-[r:`%s` {key: $key}]->() DELETE r", doc.Collection)
	}
	return []Statement{{Cypher: cypher, Params: map[string]any{"key": doc.Key}}}
}

func clearStatements(doc types.Document) ([]Statement, error) {
	groups, err := filterGroups(doc.Element)
	if err != nil {
		return nil, err
	}

	params := map[string]any{}
	var ors []string
	for _, group := range groups {
		var ands []string
		for _, f := range group {
			op, ok := cypherOperators[f.Operator]
			if !ok {
				return nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
			}
			name := fmt.Sprintf("p%d", len(params))
			params[name] = f.Value
			ands = append(ands, fmt.Sprintf("x.`%s` %s $%s", strings.ReplaceAll(f.Field, "`", ""), op, name))
		}
		if len(ands) > 0 {
			ors = append(ors, "("+strings.Join(ands, " AND ")+")")
		}
	}
	if len(ors) == 0 {
		return nil, fmt.Errorf("clear of %s has no filters", doc.Collection)
	}

	where := strings.Join(ors, " OR ")
	cypher := fmt.Sprintf("MATCH (x:`%s`) WHERE %s DETACH DELETE x", doc.Collection, where)
	if doc.Type == types.TypeEdges {
		cypher = fmt.Sprintf("MATCH ()-[x:`%s`]->() WHERE %s DELETE x", doc.Collection, where)
	}
	return []Statement{{Cypher: cypher, Params: params}}, nil
}

func filterGroups(element interface{}) ([][]types.Filter, error) {
	if groups, ok := element.([][]types.Filter); ok {
		return groups, nil
	}
	data, err := json.Marshal(element)
	if err != nil {
		return nil, err
	}
	var groups [][]types.Filter
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("clear element is not a filter list: %w", err)
	}
	return groups, nil
}

// splitLink turns "comp_unit/globomap_1" into its label and key
func splitLink(link string) (string, string, error) {
	label, key, ok := strings.Cut(link, "/")
	if !ok || key == "" || !labelPattern.MatchString(label) {
		return "", "", fmt.Errorf("invalid element reference %q", link)
	}
	return label, key, nil
}

// flatten turns an element body into graph properties. Nested properties
// become "properties.<name>" keys and metadata is dropped.
func flatten(element interface{}) (map[string]any, error) {
	data, err := json.Marshal(element)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("element is not an object: %w", err)
	}

	props := make(map[string]any, len(body))
	for k, v := range body {
		switch k {
		case "properties_metadata":
		case "properties":
			nested, _ := v.(map[string]any)
			for name, value := range nested {
				props["properties."+name] = scalar(value)
			}
		default:
			props[k] = scalar(v)
		}
	}
	return props, nil
}

// scalar converts a decoded JSON value into something a graph property
// can hold
func scalar(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any, []any:
		data, _ := json.Marshal(t)
		return string(data)
	default:
		return v
	}
}
