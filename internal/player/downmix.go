package player

import "github.com/rs/zerolog/log"

// Downmix folds interleaved PCM into mono. Stereo is averaged per sample pair
// with truncation toward zero; mono is returned as is. Any other layout is
// passed through unchanged.
func Downmix(pcm []int16, channels int) []int16 {
	switch channels {
	case 1:
		return pcm
	case 2:
		mono := make([]int16, len(pcm)/2)
		for i := range mono {
			mono[i] = int16((int32(pcm[2*i]) + int32(pcm[2*i+1])) / 2)
		}
		return mono
	default:
		log.Warn().Int("channels", channels).Msg("Unsupported channel count, passing PCM through")
		return pcm
	}
}
