package broker

// enqueueLua performs dedup-check-then-append atomically, mirroring
// original_source/redis_client_lib/redis_client.py's enqueue_script.
//
// KEYS[1] = priority stream key
// KEYS[2] = dedup set key
// ARGV[1] = job id
// ARGV[2] = job body (JSON)
// ARGV[3] = dedup TTL in seconds
//
// Returns the stream id, or the string "DUPLICATE" if already queued.
const enqueueLua = `
local stream_key = KEYS[1]
local dedup_key = KEYS[2]
local job_id = ARGV[1]
local job_data = ARGV[2]
local dedup_ttl = tonumber(ARGV[3])

if redis.call('SISMEMBER', dedup_key, job_id) == 1 then
	return 'DUPLICATE'
end

redis.call('SADD', dedup_key, job_id)
redis.call('EXPIRE', dedup_key, dedup_ttl)

return redis.call('XADD', stream_key, '*', 'job', job_data)
`

// ackLua performs the success/retry/dead-letter transition atomically:
// the stream entry is always acked and deleted, then exactly one of the
// sent/failed counters is bumped and, on failure, the job is either
// scheduled for retry or moved to the dead letter store. Grounded on
// original_source's ack_email/_move_to_dead_letter, folded into a single
// script so the transition can't be observed half-applied.
//
// A job entering RETRY is removed from the dedup set: it will be
// re-appended to its stream via the real, dedup-checked Enqueue once due
// (spec §4.4), and the dedup entry registered at first enqueue would
// otherwise cause that re-append to be falsely rejected as a duplicate.
//
// KEYS[1] = priority stream key
// KEYS[2] = retry sorted set key (email:retry)
// KEYS[3] = retry body key (email:retry:body:{id})
// KEYS[4] = dead letter list key
// KEYS[5] = daily stats hash key
// KEYS[6] = dedup set key
// ARGV[1] = consumer group
// ARGV[2] = stream id
// ARGV[3] = success flag ("1"/"0")
// ARGV[4] = will_retry flag ("1"/"0"), only meaningful when success=="0"
// ARGV[5] = job id
// ARGV[6] = job body (JSON), already updated with the new retry_count/status
// ARGV[7] = retry due timestamp (unix seconds, as string)
// ARGV[8] = retry body TTL in seconds
// ARGV[9] = dead letter TTL in seconds
const ackLua = `
local stream_key = KEYS[1]
local retry_zset = KEYS[2]
local retry_body_key = KEYS[3]
local dead_letter_key = KEYS[4]
local stats_key = KEYS[5]
local dedup_key = KEYS[6]

local group = ARGV[1]
local stream_id = ARGV[2]
local success = ARGV[3]
local will_retry = ARGV[4]
local job_id = ARGV[5]
local job_body = ARGV[6]
local retry_due = ARGV[7]
local retry_ttl = tonumber(ARGV[8])
local dlq_ttl = tonumber(ARGV[9])

redis.call('XACK', stream_key, group, stream_id)
redis.call('XDEL', stream_key, stream_id)

if success == '1' then
	redis.call('HINCRBY', stats_key, 'sent', 1)
	return 'SENT'
end

redis.call('HINCRBY', stats_key, 'failed', 1)

if will_retry == '1' then
	redis.call('SREM', dedup_key, job_id)
	redis.call('ZADD', retry_zset, retry_due, job_id)
	redis.call('SET', retry_body_key, job_body, 'EX', retry_ttl)
	return 'RETRY'
end

redis.call('LPUSH', dead_letter_key, job_body)
redis.call('EXPIRE', dead_letter_key, dlq_ttl)
return 'DEAD_LETTER'
`

// tokenBucketLua matches original_source's token_bucket_script verbatim in
// semantics: refill proportional to elapsed time, capped at bucket size,
// atomic check-and-decrement.
//
// KEYS[1] = rate_limit:{provider}
// ARGV[1] = bucket size
// ARGV[2] = refill rate per minute
// ARGV[3] = tokens requested
// ARGV[4] = current unix time (seconds)
const tokenBucketLua = `
local key = KEYS[1]
local bucket_size = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local tokens_requested = tonumber(ARGV[3])
local current_time = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or bucket_size
local last_refill = tonumber(bucket[2]) or current_time

local time_elapsed = current_time - last_refill
local tokens_to_add = math.floor(time_elapsed * refill_rate / 60)

if tokens_to_add > 0 then
	tokens = math.min(bucket_size, tokens + tokens_to_add)
	last_refill = current_time
end

if tokens >= tokens_requested then
	tokens = tokens - tokens_requested
	redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', key, 3600)
	return 1
else
	redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', key, 3600)
	return 0
end
`
