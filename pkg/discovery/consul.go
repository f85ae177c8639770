package discovery

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/consul/api"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/config"
)

type ServiceRegistry struct {
	client *api.Client
	server config.ServerConfig
	log    logrus.FieldLogger
}

func NewServiceRegistry(cfg *config.Config, log logrus.FieldLogger) (*ServiceRegistry, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Consul.ConsulAddress

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	return &ServiceRegistry{
		client: client,
		server: cfg.Server,
		log:    log.WithField("component", "discovery"),
	}, nil
}

func (sr *ServiceRegistry) registrationID() string {
	return sr.server.ServiceID + "-http"
}

// Registration describes this instance with an HTTP health check on /health
func (sr *ServiceRegistry) Registration() (*api.AgentServiceRegistration, error) {
	port, err := strconv.Atoi(sr.server.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid server port %q: %w", sr.server.Port, err)
	}

	return &api.AgentServiceRegistration{
		ID:      sr.registrationID(),
		Name:    sr.server.ServiceName,
		Port:    port,
		Address: sr.server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.server.ServiceAddress, sr.server.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"mistakes", "practice", "http"},
		Meta: map[string]string{
			"protocol": "http",
		},
	}, nil
}

func (sr *ServiceRegistry) Register() error {
	registration, err := sr.Registration()
	if err != nil {
		return err
	}

	if err := sr.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register HTTP service with Consul: %w", err)
	}

	sr.log.WithField("service_id", registration.ID).Info("registered with Consul")
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.client.Agent().ServiceDeregister(sr.registrationID()); err != nil {
		return fmt.Errorf("failed to deregister HTTP service: %w", err)
	}
	sr.log.WithField("service_id", sr.registrationID()).Info("deregistered from Consul")
	return nil
}
