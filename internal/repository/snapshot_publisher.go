package repository

import (
	"context"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// SnapshotPublisher emits every refreshed snapshot on a topic, keyed by snapshot id.
type SnapshotPublisher struct {
	pub   Publisher
	topic string
}

func NewSnapshotPublisher(pub Publisher, topic string) *SnapshotPublisher {
	return &SnapshotPublisher{pub: pub, topic: topic}
}

func (p *SnapshotPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	return p.pub.Publish(ctx, p.topic, []byte(snap.ID), snap)
}

func (p *SnapshotPublisher) Close() error {
	return p.pub.Close()
}

var _ domrepo.SnapshotPublisher = (*SnapshotPublisher)(nil)
