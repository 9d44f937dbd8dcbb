package domain

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/algos/sim"
)

// 扩展策略集：带漂移/均值回归参数的扩散过程。默认工厂不注册它们，
// 场景作者通过构造函数显式接入。

// GBMStrategy 几何布朗运动，带漂移项
type GBMStrategy struct {
	Drift      float64 // mu
	Volatility float64 // sigma
	Dt         float64
	Rand       *rand.Rand
}

// NewGBMStrategy dt 以年为单位（例如单 tick 折算 1/252）
func NewGBMStrategy(drift, volatility, dt float64, rng *rand.Rand) *GBMStrategy {
	return &GBMStrategy{Drift: drift, Volatility: volatility, Dt: dt, Rand: rng}
}

func (s *GBMStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	z := s.Rand.NormFloat64()
	close := open * math.Exp((s.Drift-0.5*s.Volatility*s.Volatility)*s.Dt+s.Volatility*math.Sqrt(s.Dt)*z)
	return wickCandle(open, close, fluctuationRate, s.Rand)
}

// HestonStrategy 赫斯顿随机波动率模型，单步演化复用 pkg 实现
type HestonStrategy struct {
	impl *sim.HestonModel
	Dt   float64
	Rand *rand.Rand
}

func NewHestonStrategy(price, vol, kappa, theta, volOfVol, rho, dt float64, rng *rand.Rand) *HestonStrategy {
	return &HestonStrategy{
		impl: sim.NewHestonModel(
			decimal.NewFromFloat(price),
			decimal.NewFromFloat(vol),
			decimal.NewFromFloat(kappa),
			decimal.NewFromFloat(theta),
			decimal.NewFromFloat(volOfVol),
			decimal.NewFromFloat(rho),
		),
		Dt:   dt,
		Rand: rng,
	}
}

func (s *HestonStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	res := s.impl.Simulate(1, decimal.NewFromFloat(s.Dt))
	close := res[1].InexactFloat64()
	return wickCandle(open, close, fluctuationRate, s.Rand)
}

// OrnsteinUhlenbeckStrategy 均值回归过程 dX = kappa(theta - X)dt + sigma dW
type OrnsteinUhlenbeckStrategy struct {
	Kappa float64
	Theta float64
	Sigma float64
	Dt    float64
	Rand  *rand.Rand
}

func NewOrnsteinUhlenbeckStrategy(kappa, theta, sigma, dt float64, rng *rand.Rand) *OrnsteinUhlenbeckStrategy {
	return &OrnsteinUhlenbeckStrategy{Kappa: kappa, Theta: theta, Sigma: sigma, Dt: dt, Rand: rng}
}

func (s *OrnsteinUhlenbeckStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	z := s.Rand.NormFloat64()
	close := open + s.Kappa*(s.Theta-open)*s.Dt + s.Sigma*math.Sqrt(s.Dt)*z
	return wickCandle(open, close, fluctuationRate, s.Rand)
}

// VasicekStrategy 瓦西塞克短期利率形态 dr = a(b - r)dt + sigma dW，
// 游戏里用于利率类标的场景
type VasicekStrategy struct {
	A     float64
	B     float64
	Sigma float64
	Dt    float64
	Rand  *rand.Rand
}

func NewVasicekStrategy(a, b, sigma, dt float64, rng *rand.Rand) *VasicekStrategy {
	return &VasicekStrategy{A: a, B: b, Sigma: sigma, Dt: dt, Rand: rng}
}

func (s *VasicekStrategy) Generate(prevClose, fluctuationRate float64, tick int) Candle {
	open := prevClose
	z := s.Rand.NormFloat64()
	close := open + s.A*(s.B-open)*s.Dt + s.Sigma*math.Sqrt(s.Dt)*z
	return wickCandle(open, close, fluctuationRate, s.Rand)
}

// wickCandle 为扩散过程的 close 补上布朗式影线
func wickCandle(open, close, fluctuationRate float64, rng *rand.Rand) Candle {
	return Candle{
		Open:  open,
		High:  math.Max(open, close) + rng.Float64()*2*fluctuationRate,
		Low:   math.Min(open, close) - rng.Float64()*2*fluctuationRate,
		Close: close,
	}
}
