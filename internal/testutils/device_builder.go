package testutils

import (
	"github.com/materna-health/wearlink/internal/platform"
)

// FakeDeviceBuilder assembles a fake peripheral: its advertisement and a
// connected link exposing the configured service tree.
type FakeDeviceBuilder struct {
	name     string
	id       string
	rssi     int
	services map[string][]platform.Characteristic
	order    []string
	link     *FakeLink
}

func NewFakeDeviceBuilder() *FakeDeviceBuilder {
	return &FakeDeviceBuilder{
		rssi:     -50,
		services: make(map[string][]platform.Characteristic),
		link:     NewFakeLink(),
	}
}

func (b *FakeDeviceBuilder) WithName(name string) *FakeDeviceBuilder {
	b.name = name
	return b
}

func (b *FakeDeviceBuilder) WithID(id string) *FakeDeviceBuilder {
	b.id = id
	return b
}

func (b *FakeDeviceBuilder) WithRSSI(rssi int) *FakeDeviceBuilder {
	b.rssi = rssi
	return b
}

// WithNotifyCharacteristic adds a notify-capable characteristic under the
// given service.
func (b *FakeDeviceBuilder) WithNotifyCharacteristic(serviceUUID, charUUID string) *FakeDeviceBuilder {
	return b.withCharacteristic(serviceUUID, &FakeCharacteristic{
		uuid:   platform.NormalizeUUID(charUUID),
		notify: true,
	})
}

// WithWriteCharacteristic adds a write-capable characteristic under the given
// service.
func (b *FakeDeviceBuilder) WithWriteCharacteristic(serviceUUID, charUUID string) *FakeDeviceBuilder {
	return b.withCharacteristic(serviceUUID, &FakeCharacteristic{
		uuid:     platform.NormalizeUUID(charUUID),
		writable: true,
	})
}

// WithReadOnlyCharacteristic adds a characteristic that supports neither
// notifications nor writes.
func (b *FakeDeviceBuilder) WithReadOnlyCharacteristic(serviceUUID, charUUID string) *FakeDeviceBuilder {
	return b.withCharacteristic(serviceUUID, &FakeCharacteristic{
		uuid: platform.NormalizeUUID(charUUID),
	})
}

func (b *FakeDeviceBuilder) withCharacteristic(serviceUUID string, char *FakeCharacteristic) *FakeDeviceBuilder {
	svc := platform.NormalizeUUID(serviceUUID)
	if _, ok := b.services[svc]; !ok {
		b.order = append(b.order, svc)
	}
	b.services[svc] = append(b.services[svc], char)
	return b
}

// WithProfileHang makes the built link's service discovery block until its
// context is done.
func (b *FakeDeviceBuilder) WithProfileHang() *FakeDeviceBuilder {
	b.link.WithProfileHang()
	return b
}

// WithSubscribeError makes subscribing to the given characteristic fail on
// the built link.
func (b *FakeDeviceBuilder) WithSubscribeError(charUUID string, err error) *FakeDeviceBuilder {
	b.link.WithSubscribeError(charUUID, err)
	return b
}

// Advertisement builds the device's advertisement.
func (b *FakeDeviceBuilder) Advertisement() *FakeAdvertisement {
	return NewFakeAdvertisement(b.name, b.id, b.rssi)
}

// Link builds the device's connected link with the configured profile.
func (b *FakeDeviceBuilder) Link() *FakeLink {
	profile := &platform.Profile{}
	for _, svc := range b.order {
		profile.Services = append(profile.Services, platform.ProfileService{
			UUID:            svc,
			Characteristics: b.services[svc],
		})
	}
	return b.link.WithProfile(profile)
}

// Install registers the device on the radio: its link becomes dialable and
// its advertisement is returned for announcing.
func (b *FakeDeviceBuilder) Install(radio *FakeRadio) (*FakeAdvertisement, *FakeLink) {
	link := b.Link()
	radio.WithLink(b.id, link)
	return b.Advertisement(), link
}
