package observability

import "go.opentelemetry.io/otel/attribute"

const (
	attrKind attribute.Key = "kind"
	attrStat attribute.Key = "stat"
)
