// Package services - MerkleService keeps a Merkle tree over the rating log so
// that any single rating can be proven part of the aggregate it fed.
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"go.uber.org/zap"
)

// MerkleService manages the Merkle tree for rating log integrity
type MerkleService struct {
	mu            sync.RWMutex
	leaves        []string
	layers        [][]string
	root          string
	lastBuildTime time.Time
	logger        *zap.SugaredLogger
}

// NewMerkleService creates a new Merkle service
func NewMerkleService(logger *zap.SugaredLogger) *MerkleService {
	return &MerkleService{logger: logger}
}

// RatingLeaf hashes the immutable fields of a rating
func RatingLeaf(r models.Rating) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d",
		r.ID, r.ComplaintID, r.WorkerID, r.CitizenID, r.Score, r.CreatedAt.UTC().UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// BuildFromRatings rebuilds the tree with one leaf per rating, in log order
func (m *MerkleService) BuildFromRatings(ratings []models.Rating) {
	leaves := make([]string, len(ratings))
	for i, r := range ratings {
		leaves[i] = RatingLeaf(r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaves = leaves
	m.buildTree()
	m.lastBuildTime = time.Now()

	m.logger.Infow("Merkle tree rebuilt",
		"leaves", len(m.leaves),
		"root", m.root,
	)
}

// GetRoot returns the current Merkle root
func (m *MerkleService) GetRoot() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// GetLeafCount returns the number of leaves
func (m *MerkleService) GetLeafCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leaves)
}

// GetLastBuildTime returns when the tree was last rebuilt
func (m *MerkleService) GetLastBuildTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBuildTime
}

// GetProof generates a Merkle proof for the given leaf index
func (m *MerkleService) GetProof(index int) (*models.MerkleProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.leaves) {
		return nil, fmt.Errorf("index %d out of range (0-%d)", index, len(m.leaves)-1)
	}

	proof := &models.MerkleProof{
		LeafHash: m.leaves[index],
		Root:     m.root,
		Index:    index,
		Proof:    make([]models.ProofStep, 0, len(m.layers)),
	}

	pos := index
	for _, layer := range m.layers[:len(m.layers)-1] {
		sibling, side := pos+1, "right"
		if pos%2 == 1 {
			sibling, side = pos-1, "left"
		}
		// The last node of an odd layer is paired with itself.
		if sibling >= len(layer) {
			sibling = pos
		}
		proof.Proof = append(proof.Proof, models.ProofStep{Hash: layer[sibling], Position: side})
		pos /= 2
	}

	proof.Verified = VerifyProof(proof)
	return proof, nil
}

// VerifyProof recomputes the root from a leaf and its path
func VerifyProof(p *models.MerkleProof) bool {
	if p == nil || p.Root == "" {
		return false
	}
	current := p.LeafHash
	for _, step := range p.Proof {
		switch step.Position {
		case "left":
			current = hashPair(step.Hash, current)
		case "right":
			current = hashPair(current, step.Hash)
		default:
			return false
		}
	}
	return current == p.Root
}

// buildTree constructs the Merkle tree from leaves (must hold write lock)
func (m *MerkleService) buildTree() {
	if len(m.leaves) == 0 {
		m.root = ""
		m.layers = nil
		return
	}

	layer := append([]string(nil), m.leaves...)
	m.layers = [][]string{layer}

	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			right := layer[i]
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, hashPair(layer[i], right))
		}
		m.layers = append(m.layers, next)
		layer = next
	}

	m.root = layer[0]
}

// hashPair combines and hashes two nodes
func hashPair(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}
