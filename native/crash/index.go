package crash

// TotalRounds returns the number of rounds ever created.
func (e *Engine) TotalRounds() (uint64, error) {
	index, ok, err := e.state.IndexGet()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotInitialized
	}
	return index.TotalRounds, nil
}

// GetRound looks up a round directly by its creation key.
func (e *Engine) GetRound(createdAt uint32) (*Round, error) {
	round, ok, err := e.state.RoundGet(RoundID(createdAt))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoundNotFound
	}
	return round.Clone(), nil
}

// ListRounds returns up to limit round summaries starting at global
// creation position offset, reading across however many index shards the
// window spans. An out-of-range offset yields an empty slice. Read-only.
func (e *Engine) ListRounds(offset uint64, limit int) ([]RoundSummary, error) {
	index, ok, err := e.state.IndexGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	out := []RoundSummary{}
	if limit <= 0 || offset >= index.TotalRounds {
		return out, nil
	}

	var chunk *IndexChunk
	for cur := offset; cur < index.TotalRounds && len(out) < limit; cur++ {
		chunkID := cur / ChunkCapacity
		if chunk == nil || chunk.ChunkID != chunkID {
			loaded, ok, err := e.state.ChunkGet(chunkID)
			if err != nil {
				return nil, err
			}
			if !ok || loaded.ChunkID != chunkID {
				return nil, ErrInvalidChunk
			}
			chunk = loaded
		}
		pos := int(cur % ChunkCapacity)
		if pos >= len(chunk.Entries) {
			return nil, ErrInvalidChunk
		}
		entry := chunk.Entries[pos]
		summary := RoundSummary{RoundID: entry.RoundID, CreatedAt: entry.CreatedAt}
		if round, ok, err := e.state.RoundGet(entry.RoundID); err != nil {
			return nil, err
		} else if ok {
			summary.Name = round.Name
			summary.Multiplier = round.Multiplier
			summary.Status = round.Status
			summary.Crashed = round.Crashed
		}
		out = append(out, summary)
	}
	return out, nil
}
