package output

// packetQueue is the beep.Streamer attached to the speaker. It never blocks:
// when no packet is queued the remainder of the batch is silence, which keeps
// the speaker's pipeline flowing between songs and during network stalls.
type packetQueue struct {
	packets chan []int16
	current []int16
	offset  int
}

func newPacketQueue(depth int) *packetQueue {
	return &packetQueue{packets: make(chan []int16, depth)}
}

func (q *packetQueue) Stream(samples [][2]float64) (n int, ok bool) {
	filled := 0
	for filled < len(samples) {
		if q.offset >= len(q.current) {
			select {
			case pkt := <-q.packets:
				q.current = pkt
				q.offset = 0
			default:
				q.current = nil
			}
			if q.current == nil {
				break
			}
			continue
		}
		for ; filled < len(samples) && q.offset < len(q.current); filled++ {
			v := float64(q.current[q.offset]) / 32768
			samples[filled] = [2]float64{v, v}
			q.offset++
		}
	}

	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (q *packetQueue) Err() error {
	return nil
}

// reset discards the packet in progress and everything still queued.
func (q *packetQueue) reset() {
	q.current = nil
	q.offset = 0
	for {
		select {
		case <-q.packets:
		default:
			return
		}
	}
}

// pending reports how many packets wait behind the one being played.
func (q *packetQueue) pending() int {
	return len(q.packets)
}
