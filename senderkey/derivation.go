package senderkey

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

// senderKeyLabel is the HKDF info prefix used to derive sender key seeds.
const senderKeyLabel = "kalandraSenderKeyV1"

// DeriveSenderKeySeed derives a 32-byte seed unique to (epochSecret, epoch,
// senderIndex) via HKDF-SHA256 with no salt — the epoch secret is already
// high-entropy keyed material. Deterministic: identical inputs always
// produce the identical seed.
func DeriveSenderKeySeed(epochSecret []byte, epoch uint64, senderIndex uint32) [32]byte {
	logger := logrus.WithFields(logrus.Fields{
		"function":     "DeriveSenderKeySeed",
		"package":      "senderkey",
		"epoch":        epoch,
		"sender_index": senderIndex,
	})
	logger.Debug("deriving sender key seed")

	info := make([]byte, 0, len(senderKeyLabel)+8+4)
	info = append(info, senderKeyLabel...)
	info = binary.BigEndian.AppendUint64(info, epoch)
	info = binary.BigEndian.AppendUint32(info, senderIndex)

	reader := hkdf.New(sha256.New, epochSecret, nil, info)

	var seed [32]byte
	if _, err := io.ReadFull(reader, seed[:]); err != nil {
		// HKDF-SHA256 can produce up to 255*32 bytes; 32 bytes never fails.
		panic("senderkey: HKDF expand of 32 bytes failed unexpectedly: " + err.Error())
	}

	return seed
}

// DeriveAllSenderSeeds derives seeds for every member index in a single
// epoch, e.g. when (re)initializing a SenderKeyStore at an epoch boundary.
func DeriveAllSenderSeeds(epochSecret []byte, epoch uint64, memberIndices []uint32) map[uint32][32]byte {
	seeds := make(map[uint32][32]byte, len(memberIndices))
	for _, idx := range memberIndices {
		seeds[idx] = DeriveSenderKeySeed(epochSecret, epoch, idx)
	}
	return seeds
}
