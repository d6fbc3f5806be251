package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nandanugg/minefield-alarm/config"
)

const metersPerDegree = 111320.0

type locationMessage struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

type walkOptions struct {
	deviceID string
	lat      float64
	lon      float64
	interval time.Duration
	step     float64
	bearing  float64
	count    int
}

var opts walkOptions

var rootCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Mock observer device publishing positions over MQTT",
	Long:  "Walks from a start point in random steps, optionally drifting along a bearing, and publishes each fix to the device's location topic.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		defer func() { _ = zap.L().Sync() }()

		if !cmd.Flags().Changed("interval") {
			opts.interval = cfg.Location.UpdateInterval
		}
		if opts.interval <= 0 {
			return eris.New("interval must be positive")
		}

		client, err := config.NewMQTT(cfg.MQTT, "minefield-mock-"+opts.deviceID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		topic := fmt.Sprintf("/minefield/device/%s/location", opts.deviceID)
		zap.L().Info("publishing",
			zap.String("broker", cfg.MQTT.Broker),
			zap.String("topic", topic),
			zap.Duration("interval", opts.interval),
		)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		lat, lon := opts.lat, opts.lon
		for sent := 0; opts.count <= 0 || sent < opts.count; sent++ {
			msg := locationMessage{
				DeviceID:  opts.deviceID,
				Latitude:  lat,
				Longitude: lon,
				Accuracy:  3 + rng.Float64()*12,
				Timestamp: time.Now().Unix(),
			}
			payload, _ := json.Marshal(msg)

			token := client.Publish(topic, 1, false, payload)
			token.Wait()
			if err := token.Error(); err != nil {
				zap.L().Warn("publish failed", zap.Error(err))
			} else {
				zap.L().Info("published", zap.Float64("latitude", lat), zap.Float64("longitude", lon))
			}

			lat, lon = nextStep(rng, lat, lon, opts.step, opts.bearing)

			select {
			case <-sig:
				return nil
			case <-ticker.C:
			}
		}
		return nil
	},
}

// nextStep moves up to step meters in a random direction. A non-negative
// bearing (degrees from north) adds a drift of step/2 along it.
func nextStep(rng *rand.Rand, lat, lon, step, bearing float64) (float64, float64) {
	theta := rng.Float64() * 2 * math.Pi
	dist := rng.Float64() * step
	north := dist * math.Cos(theta)
	east := dist * math.Sin(theta)
	if bearing >= 0 {
		b := bearing * math.Pi / 180
		north += step / 2 * math.Cos(b)
		east += step / 2 * math.Sin(b)
	}

	lat += north / metersPerDegree
	lon += east / (metersPerDegree * math.Max(math.Cos(lat*math.Pi/180), 1e-6))
	return math.Max(-90, math.Min(90, lat)), wrapLongitude(lon)
}

func wrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func init() {
	rootCmd.Flags().StringVar(&opts.deviceID, "device", "pixel-7", "device id to publish as")
	rootCmd.Flags().Float64Var(&opts.lat, "lat", 44.8125, "start latitude")
	rootCmd.Flags().Float64Var(&opts.lon, "lon", 20.4612, "start longitude")
	rootCmd.Flags().DurationVar(&opts.interval, "interval", 10*time.Second, "publish interval (defaults to location.update_interval)")
	rootCmd.Flags().Float64Var(&opts.step, "step", 50, "max random step in meters")
	rootCmd.Flags().Float64Var(&opts.bearing, "bearing", -1, "drift bearing in degrees, negative for none")
	rootCmd.Flags().IntVar(&opts.count, "count", 0, "number of fixes to send, 0 for unlimited")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
