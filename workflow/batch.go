package workflow

// Batch window math shared by the extraction session manager and the
// migration executor. Batch numbers are 1-based.

func totalBatchCount(totalItems, batchSize int) int {
	if totalItems <= 0 {
		return 0
	}
	if batchSize <= 0 || batchSize >= totalItems {
		return 1
	}
	count := totalItems / batchSize
	if totalItems%batchSize != 0 {
		count++
	}
	return count
}

// batchWindow returns the half-open index range [(b-1)*size, b*size) clipped
// to n. An out-of-range batch yields an empty window.
func batchWindow(n, currentBatch, batchSize int) (int, int) {
	if n <= 0 || currentBatch < 1 {
		return 0, 0
	}
	if batchSize <= 0 {
		if currentBatch > 1 {
			return 0, 0
		}
		return 0, n
	}
	start := (currentBatch - 1) * batchSize
	if start >= n {
		return 0, 0
	}
	end := start + batchSize
	if end > n {
		end = n
	}
	return start, end
}
