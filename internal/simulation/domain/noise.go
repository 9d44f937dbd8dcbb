package domain

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
)

// NoiseModel 噪声模型枚举，Run 配置中按名称选择
type NoiseModel string

const (
	NoiseBrownian     NoiseModel = "BROWNIAN"
	NoiseRandomCandle NoiseModel = "RANDOM_CANDLE"
	NoisePerlin       NoiseModel = "PERLIN"
	NoiseRandomWalk   NoiseModel = "RANDOM_WALK"
	NoiseMonteCarlo   NoiseModel = "MONTE_CARLO"
)

// NoiseStrategy 噪声策略接口：由上一收盘价推演下一根蜡烛，Open 恒等于 prevClose
type NoiseStrategy interface {
	Generate(prevClose, fluctuationRate float64, tick int) Candle
}

// NewNoiseStrategy 按配置枚举构造策略实例。未注册的模型在 Run 建立时
// 即返回 ErrUnknownNoiseModel，绝不静默回退到默认模型。
func NewNoiseStrategy(model NoiseModel, rng *rand.Rand) (NoiseStrategy, error) {
	switch model {
	case NoiseBrownian:
		return &BrownianStrategy{Rand: rng}, nil
	case NoiseRandomCandle:
		return &RandomCandleStrategy{Rand: rng}, nil
	case NoisePerlin:
		return NewPerlinStrategy(rng.Int63()), nil
	case NoiseRandomWalk:
		return &RandomWalkStrategy{Rand: rng}, nil
	case NoiseMonteCarlo:
		return NewMonteCarloStrategy(rng), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNoiseModel, model)
	}
}

// BrownianStrategy 布朗运动：收盘价叠加正态扰动，影线叠加均匀扩散
type BrownianStrategy struct {
	Rand *rand.Rand
}

func (s *BrownianStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	close := open + s.Rand.NormFloat64()*fluctuationRate
	high := math.Max(open, close) + s.Rand.Float64()*2*fluctuationRate
	low := math.Min(open, close) - s.Rand.Float64()*2*fluctuationRate
	return Candle{Open: open, High: high, Low: low, Close: close}
}

// RandomCandleStrategy 先取高低影线再在区间内均匀落收盘价
type RandomCandleStrategy struct {
	Rand *rand.Rand
}

func (s *RandomCandleStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	high := open + s.Rand.Float64()*5*fluctuationRate
	low := open - s.Rand.Float64()*5*fluctuationRate
	close := low + s.Rand.Float64()*(high-low)
	return Candle{Open: open, High: high, Low: low, Close: close}
}

// PerlinStrategy 相干噪声驱动，相邻 tick 的收盘价平滑连续
type PerlinStrategy struct {
	noise *perlin.Perlin
	rng   *rand.Rand
}

// NewPerlinStrategy 以给定种子构造相干噪声源
func NewPerlinStrategy(seed int64) *PerlinStrategy {
	return &PerlinStrategy{
		noise: perlin.NewPerlin(2, 2, 3, seed),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *PerlinStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	close := open + s.noise.Noise1D(float64(tick)*0.1)*fluctuationRate*10
	high := math.Max(open, close) + s.rng.Float64()*2*fluctuationRate
	low := math.Min(open, close) - s.rng.Float64()*2*fluctuationRate
	return Candle{Open: open, High: high, Low: low, Close: close}
}

// RandomWalkStrategy 随机游走：等概率方向的均匀步长，无额外影线扩散
type RandomWalkStrategy struct {
	Rand *rand.Rand
}

func (s *RandomWalkStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	sign := 1.0
	if s.Rand.Intn(2) == 0 {
		sign = -1.0
	}
	close := open + sign*s.Rand.Float64()*5*fluctuationRate
	return Candle{
		Open:  open,
		High:  math.Max(open, close),
		Low:   math.Min(open, close),
		Close: close,
	}
}

// MonteCarloStrategy 蒙特卡洛聚合采样：模拟多条零漂移几何路径，
// 收盘取末值均值，高低取末值极值（因此不保证包住 open/close 的包络不变量）
type MonteCarloStrategy struct {
	NumSimulations int
	TimeHorizon    int
	Rand           *rand.Rand
}

// NewMonteCarloStrategy 默认 100 条路径、20 步
func NewMonteCarloStrategy(rng *rand.Rand) *MonteCarloStrategy {
	return &MonteCarloStrategy{
		NumSimulations: 100,
		TimeHorizon:    20,
		Rand:           rng,
	}
}

func (s *MonteCarloStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	dt := 1.0 / float64(s.TimeHorizon)

	sum := 0.0
	high := math.Inf(-1)
	low := math.Inf(1)
	for i := 0; i < s.NumSimulations; i++ {
		price := open
		for t := 0; t < s.TimeHorizon; t++ {
			z := s.Rand.NormFloat64()
			price *= math.Exp(-0.5*fluctuationRate*fluctuationRate*dt + fluctuationRate*math.Sqrt(dt)*z)
		}
		sum += price
		high = math.Max(high, price)
		low = math.Min(low, price)
	}

	return Candle{
		Open:  open,
		High:  high,
		Low:   low,
		Close: sum / float64(s.NumSimulations),
	}
}
