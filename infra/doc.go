// Package infra contains the adapters between the dispatch core and the
// outside world: the printer backend REST client, the MQTT event
// subscriber, metrics exporters and Sentry reporting. These packages depend
// only on the interfaces defined in core.
package infra
