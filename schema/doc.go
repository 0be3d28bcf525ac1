// Package schema defines the data model shared by every WikiGR package:
// the nodes and edges of a knowledge pack's graph (Article, Section,
// Entity, Fact, Category) and the small value types the expansion and
// retrieval pipelines pass between stages.
package schema
