package dataio

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PacketFeatureLength is the fixed width of packet feature vectors.
const PacketFeatureLength = 8

// PacketExtractor converts network packets into fixed-length feature
// vectors suitable for the feature store.
type PacketExtractor struct {
	lastTimestamp time.Time
}

// NewPacketExtractor creates a packet feature extractor.
func NewPacketExtractor() *PacketExtractor {
	return &PacketExtractor{}
}

// Extract converts a packet to a feature vector.
// Features: [packet_size, inter_arrival_time, protocol, src_port, dst_port,
// tcp_flags, ip_ttl, payload_size]
func (e *PacketExtractor) Extract(packet gopacket.Packet) []float64 {
	features := make([]float64, PacketFeatureLength)

	features[0] = float64(len(packet.Data()))

	metadata := packet.Metadata()
	if metadata != nil && !metadata.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			features[1] = metadata.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = metadata.Timestamp
	}

	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		features[2] = 6
		tcp := tcpLayer.(*layers.TCP)
		features[3] = float64(tcp.SrcPort)
		features[4] = float64(tcp.DstPort)
		features[5] = encodeTCPFlags(tcp)
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		features[2] = 17
		udp := udpLayer.(*layers.UDP)
		features[3] = float64(udp.SrcPort)
		features[4] = float64(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil {
		features[2] = 1
	}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip := ipLayer.(*layers.IPv4)
		features[6] = float64(ip.TTL)
	}

	if appLayer := packet.ApplicationLayer(); appLayer != nil {
		features[7] = float64(len(appLayer.Payload()))
	}

	return features
}

// FeatureNames returns the names of extracted features.
func (e *PacketExtractor) FeatureNames() []string {
	return []string{
		"packet_size",
		"inter_arrival_time",
		"protocol",
		"src_port",
		"dst_port",
		"tcp_flags",
		"ip_ttl",
		"payload_size",
	}
}

// ReadPacketFeatures extracts feature vectors from every packet of a
// capture file.
func ReadPacketFeatures(filename string) ([][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := pcapgo.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	extractor := NewPacketExtractor()
	source := gopacket.NewPacketSource(reader, reader.LinkType())

	var data [][]float64
	for packet := range source.Packets() {
		if features := extractor.Extract(packet); features != nil {
			data = append(data, features)
		}
	}
	return data, nil
}

func encodeTCPFlags(tcp *layers.TCP) float64 {
	var flags float64
	if tcp.SYN {
		flags += 1
	}
	if tcp.ACK {
		flags += 2
	}
	if tcp.FIN {
		flags += 4
	}
	if tcp.RST {
		flags += 8
	}
	if tcp.PSH {
		flags += 16
	}
	if tcp.URG {
		flags += 32
	}
	return flags
}
