package container

import "context"

type DecoratorFunc func(ctx context.Context, r Resolver, instance any) (any, error)

func (c *Container) AddDecorator(key string, decorator DecoratorFunc) {
	c.decoratorsMu.Lock()
	defer c.decoratorsMu.Unlock()

	c.decorators[key] = append(c.decorators[key], decorator)
}

func (c *Container) applyDecorators(ctx context.Context, f *frame, key string, instance any) (any, error) {
	c.decoratorsMu.RLock()
	decorators := c.decorators[key]
	c.decoratorsMu.RUnlock()

	if len(decorators) == 0 {
		return instance, nil
	}

	r := &boundResolver{container: c, frame: f}

	var err error
	for _, decorator := range decorators {
		instance, err = decorator(ctx, r, instance)
		if err != nil {
			return nil, newServiceError(ErrDecorator, key, err)
		}
	}

	return instance, nil
}
