// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package saliency

import (
	"fmt"

	"github.com/fumi-engineer/saliency/nn"
)

// embeddingShape is a container type whose named child holds the token
// embedding table.
type embeddingShape struct {
	container string
	child     string
}

var knownShapes = []embeddingShape{
	{"BertEmbeddings", "word_embeddings"},
	{"RobertaEmbeddings", "word_embeddings"},
	{"CamembertEmbeddings", "word_embeddings"},
	{"GPT2Model", "wte"},
}

// detectEmbedding walks root and returns the token table of the last known
// container it meets, with its dotted path.
func detectEmbedding(root nn.Module) (nn.Module, string, error) {
	var found nn.Module
	var foundPath string
	nn.Walk(root, func(path string, m nn.Module) bool {
		for _, s := range knownShapes {
			if m.Type() != s.container {
				continue
			}
			if child, ok := nn.ChildNamed(m, s.child); ok {
				found, foundPath = child, join(path, s.child)
			}
		}
		return true
	})
	if found == nil {
		return nil, "", fmt.Errorf("%w in %s", ErrEmbeddingNotFound, root.Type())
	}
	return found, foundPath, nil
}

// pathOf returns the dotted path of target under root.
func pathOf(root, target nn.Module) (string, bool) {
	var p string
	var ok bool
	nn.Walk(root, func(path string, m nn.Module) bool {
		if m == target {
			p, ok = path, true
		}
		return !ok
	})
	return p, ok
}

func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
