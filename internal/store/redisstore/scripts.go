package redisstore

import "github.com/redis/go-redis/v9"

// KEYS[1] запись, KEYS[2] счётчик ревизий.
// ARGV[1] значение, ARGV[2] канал уведомлений, ARGV[3] TTL в мс (0 без TTL).
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local rev = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'r', rev)
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
redis.call('PUBLISH', ARGV[2], KEYS[1])
return rev
`)

// ARGV[4] ожидаемая ревизия.
var updateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'r')
if not cur or cur ~= ARGV[4] then
	return 0
end
local rev = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'r', rev)
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
redis.call('PUBLISH', ARGV[2], KEYS[1])
return rev
`)

var deleteScript = redis.NewScript(`
if redis.call('DEL', KEYS[1]) == 0 then
	return 0
end
local rev = redis.call('INCR', KEYS[2])
redis.call('PUBLISH', ARGV[1], KEYS[1])
return rev
`)
